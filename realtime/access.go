package realtime

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"board-api/domain"
)

// UserStore resolves the profile behind a principal for presence identity.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthRequest is one subscription-authorization attempt from a connected
// client.
type AuthRequest struct {
	ConnectionID string `json:"connectionId"`
	TopicName    string `json:"topicName"`
	DeviceTabID  string `json:"deviceTabId,omitempty"`
}

// Authorizer decides, per subscription request, whether a principal may join
// a topic and under what identity. A denial carries no grant material and
// never distinguishes a forbidden channel from a missing one.
type Authorizer struct {
	transport Transport
	oracle    PermissionChecker
	users     UserStore
	logger    *log.Logger
}

func NewAuthorizer(transport Transport, oracle PermissionChecker, users UserStore, logger *log.Logger) *Authorizer {
	return &Authorizer{transport: transport, oracle: oracle, users: users, logger: logger}
}

// Authorize parses the topic, checks access and mints a transport grant.
func (a *Authorizer) Authorize(ctx context.Context, req AuthRequest, principal domain.Principal) (Grant, error) {
	if principal.UserID == "" {
		return Grant{}, domain.ErrUnauthenticated
	}
	if req.ConnectionID == "" {
		return Grant{}, fmt.Errorf("connectionId is required: %w", domain.ErrInvalidInput)
	}
	if a.transport == nil {
		return Grant{}, fmt.Errorf("no transport configured: %w", domain.ErrTransportFailure)
	}

	topic, err := ParseTopic(req.TopicName)
	if err != nil {
		return Grant{}, err
	}

	switch topic.Kind {
	case TopicUserPrivate:
		// A principal may never attach to another principal's mailbox.
		if topic.ID != principal.UserID {
			return Grant{}, domain.ErrForbidden
		}
		return a.mintPrivate(req.ConnectionID, topic)

	case TopicChannelPrivate, TopicChannelPresence:
		decision, err := a.oracle.Check(ctx, topic.ID, principal, domain.CapabilityView)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return Grant{}, domain.ErrForbidden
			}
			return Grant{}, err
		}
		if !decision.Allowed {
			return Grant{}, domain.ErrForbidden
		}
		if topic.Kind == TopicChannelPrivate {
			return a.mintPrivate(req.ConnectionID, topic)
		}
		return a.mintPresence(ctx, req, topic, principal)
	}
	return Grant{}, domain.ErrInvalidTopic
}

func (a *Authorizer) mintPrivate(connectionID string, topic Topic) (Grant, error) {
	grant, err := a.transport.AuthorizePrivate(connectionID, topic.Name())
	if err != nil {
		return Grant{}, fmt.Errorf("authorize %s: %w", topic.Name(), domain.ErrTransportFailure)
	}
	return grant, nil
}

func (a *Authorizer) mintPresence(ctx context.Context, req AuthRequest, topic Topic, principal domain.Principal) (Grant, error) {
	name := principal.UserID
	avatar := ""
	if a.users != nil {
		user, err := a.users.GetUser(ctx, principal.UserID)
		if err != nil {
			a.logger.WithField("user", principal.UserID).Warnf("presence profile lookup failed: %v", err)
		} else if user != nil {
			if user.Name != "" {
				name = user.Name
			}
			avatar = user.AvatarURL
		}
	}
	member := NewMemberIdentity(principal.UserID, req.DeviceTabID, name, avatar)
	grant, err := a.transport.AuthorizePresence(req.ConnectionID, topic.Name(), member)
	if err != nil {
		return Grant{}, fmt.Errorf("authorize %s: %w", topic.Name(), domain.ErrTransportFailure)
	}
	return grant, nil
}
