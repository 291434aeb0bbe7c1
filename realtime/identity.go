package realtime

import "hash/fnv"

// MemberIdentity is the public presence descriptor attached to a
// presence-channel subscription. MemberID combines the principal with the
// device tab so the same human on two tabs appears as two presence entries.
type MemberIdentity struct {
	MemberID  string `json:"memberId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Color     string `json:"color"`
}

// presencePalette holds the colors assigned to presence members. Picked by a
// stable hash of the user id so every device of the same person shows the
// same color.
var presencePalette = []string{
	"#e6194b", "#3cb44b", "#f58231", "#4363d8",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c",
	"#fabebe", "#008080", "#9a6324", "#800000",
}

// NewMemberIdentity builds the presence identity for one (principal, tab)
// pair. The tab id contributes to MemberID only, never to the color: color is
// keyed to the human, not the connection.
func NewMemberIdentity(userID, tabID, name, avatarURL string) MemberIdentity {
	memberID := userID
	if tabID != "" {
		memberID = userID + "." + tabID
	}
	return MemberIdentity{
		MemberID:  memberID,
		UserID:    userID,
		Name:      name,
		AvatarURL: avatarURL,
		Color:     ColorForUser(userID),
	}
}

// ColorForUser derives a deterministic presence color from a user id.
func ColorForUser(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return presencePalette[h.Sum32()%uint32(len(presencePalette))]
}
