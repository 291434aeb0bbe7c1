package api

import (
	"context"

	"board-api/domain"
	"board-api/realtime"
)

// Authenticator is implemented by types able to resolve principals from
// Authorization headers.
type Authenticator interface {
	PrincipalFromAuthHeader(string) (domain.Principal, error)
}

// Deduper prevents processing of replayed mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails.
	Remove(ctx context.Context, userID, key string) error
}

// ColumnMutator is the column mutation handler.
type ColumnMutator interface {
	Create(ctx context.Context, channelID string, in domain.CreateColumnInput) (domain.Column, error)
	Reorder(ctx context.Context, channelID, columnID string, toPosition int) ([]domain.Column, error)
	Delete(ctx context.Context, channelID, columnID string) error
}

// CardMutator is the card mutation handler.
type CardMutator interface {
	Create(ctx context.Context, channelID, columnID string, in domain.CreateCardInput) (domain.Card, error)
	Reorder(ctx context.Context, channelID, columnID, cardID string, toPosition int) ([]domain.Card, error)
	Delete(ctx context.Context, channelID, columnID, cardID string) error
}

// TaskMutator is the task mutation handler.
type TaskMutator interface {
	Create(ctx context.Context, channelID string, in domain.CreateTaskInput) (domain.Task, error)
	Reorder(ctx context.Context, channelID, taskID string, toPosition int) ([]domain.Task, error)
	Delete(ctx context.Context, channelID, taskID string) error
}

// Lister serves the ordered sibling reads behind the GET endpoints.
type Lister interface {
	ListColumns(ctx context.Context, channelID string) ([]domain.Column, error)
	ListCards(ctx context.Context, channelID, columnID string) ([]domain.Card, error)
	ListTasks(ctx context.Context, channelID, scope string) ([]domain.Task, error)
}

// PermissionChecker gates every mutation before it touches storage.
type PermissionChecker interface {
	Check(ctx context.Context, channelID string, principal domain.Principal, cap domain.Capability) (domain.Decision, error)
}

// Publisher fans committed mutations out to the real-time transport.
type Publisher interface {
	Publish(ctx context.Context, req realtime.BroadcastRequest, principal domain.Principal) error
}

// SubscriptionAuthorizer answers real-time subscription requests.
type SubscriptionAuthorizer interface {
	Authorize(ctx context.Context, req realtime.AuthRequest, principal domain.Principal) (realtime.Grant, error)
}
