package domain

import "time"

// Role is the effective access level a principal holds on a channel.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Capability is a named permission implied by a role.
type Capability string

const (
	CapabilityView         Capability = "view"
	CapabilityEdit         Capability = "edit"
	CapabilityManageShares Capability = "manage_shares"
)

// Grants reports whether the role implies the capability. Roles nest:
// owner ⊇ editor ⊇ viewer.
func (r Role) Grants(cap Capability) bool {
	switch cap {
	case CapabilityView:
		return r == RoleOwner || r == RoleEditor || r == RoleViewer
	case CapabilityEdit:
		return r == RoleOwner || r == RoleEditor
	case CapabilityManageShares:
		return r == RoleOwner
	default:
		return false
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
}

// Channel is a board holding ordered columns, cards and tasks.
type Channel struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Public    bool      `json:"public,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Share grants a non-owner access to a channel, matched either by user id
// or by the invitee's registered email.
type Share struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	Accepted  bool   `json:"accepted"`
}

// User is the profile record behind a principal, used for presence identity.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Column is an ordered lane inside a channel.
type Column struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card is an ordered item inside a column.
type Card struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	ColumnID  string    `json:"columnId"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is an ordered checklist entry. CardID is empty for tasks parented
// directly to the channel ("unlinked" tasks).
type Task struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	CardID    string    `json:"cardId,omitempty"`
	Title     string    `json:"title"`
	Done      bool      `json:"done,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ParentScope returns the sibling-set key for the task: the card when
// linked, otherwise the channel.
func (t Task) ParentScope() string {
	if t.CardID != "" {
		return t.CardID
	}
	return t.ChannelID
}
