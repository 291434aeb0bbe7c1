package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"board-api/domain"
)

// PermissionChecker is the slice of the permission oracle the bus needs.
type PermissionChecker interface {
	Check(ctx context.Context, channelID string, principal domain.Principal, cap domain.Capability) (domain.Decision, error)
}

// Envelope is the wire shape of a fanned-out event. SenderID identifies the
// originating client session; receivers drop envelopes carrying their own
// session id (echo suppression is a receiver-side contract, the bus only
// attaches the id faithfully).
type Envelope struct {
	Type     string                 `json:"type"`
	Payload  sonic.NoCopyRawMessage `json:"payload,omitempty"`
	EventID  int64                  `json:"eventId"`
	SenderID string                 `json:"senderId"`
}

// BroadcastRequest is one publish attempt from a client session.
type BroadcastRequest struct {
	EventType string                 `json:"eventType"`
	Payload   sonic.NoCopyRawMessage `json:"payload,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"`
	SenderID  string                 `json:"senderId"`
}

// Broadcaster classifies committed-mutation events and fans them out to the
// transport after re-checking the publisher's capability. It never mutates
// domain state and never persists events.
type Broadcaster struct {
	transport Transport
	oracle    PermissionChecker
	logger    *log.Logger
}

func NewBroadcaster(transport Transport, oracle PermissionChecker, logger *log.Logger) *Broadcaster {
	return &Broadcaster{transport: transport, oracle: oracle, logger: logger}
}

// Configured reports whether a transport is attached. An unconfigured bus
// accepts every publish as a silent no-op so clients are never blocked by an
// optional feature.
func (b *Broadcaster) Configured() bool { return b != nil && b.transport != nil }

// Publish classifies, authorizes and fans out one event.
func (b *Broadcaster) Publish(ctx context.Context, req BroadcastRequest, principal domain.Principal) error {
	if principal.UserID == "" {
		return domain.ErrUnauthenticated
	}
	if !b.Configured() {
		return nil
	}

	class, err := domain.Classify(req.EventType)
	if err != nil {
		return err
	}

	var topic Topic
	switch class.Scope {
	case domain.ScopeUser:
		topic = UserTopic(principal.UserID)
	case domain.ScopeChannel:
		if req.ChannelID == "" {
			return fmt.Errorf("channelId is required for %s: %w", req.EventType, domain.ErrInvalidInput)
		}
		decision, err := b.oracle.Check(ctx, req.ChannelID, principal, class.Requires)
		if err != nil {
			// A missing channel is indistinguishable from a forbidden one.
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrForbidden
			}
			return err
		}
		if !decision.Allowed {
			return domain.ErrForbidden
		}
		topic = ChannelTopic(req.ChannelID)
	}

	env := Envelope{
		Type:     req.EventType,
		Payload:  req.Payload,
		EventID:  nextEventID(),
		SenderID: req.SenderID,
	}
	data, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.transport.Publish(ctx, topic.Name(), data); err != nil {
		b.logger.WithFields(log.Fields{
			"topic": topic.Name(),
			"type":  req.EventType,
		}).Errorf("publish failed: %v", err)
		return fmt.Errorf("publish %s: %w", req.EventType, domain.ErrTransportFailure)
	}
	b.logger.WithFields(log.Fields{
		"topic":    topic.Name(),
		"type":     req.EventType,
		"event_id": env.EventID,
	}).Debug("event published")
	return nil
}
