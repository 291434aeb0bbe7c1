package realtime

import (
	"fmt"
	"strings"

	"board-api/domain"
)

// TopicKind discriminates the three subscription topic families.
type TopicKind int

const (
	TopicUserPrivate TopicKind = iota
	TopicChannelPrivate
	TopicChannelPresence
)

// Topic naming is a wire contract with the transport and must stay bit-exact.
const (
	userPrivatePrefix     = "private-user-"
	channelPrivatePrefix  = "private-channel-"
	channelPresencePrefix = "presence-channel-"
)

// Topic is a parsed subscription topic: its kind plus the embedded user or
// channel id.
type Topic struct {
	Kind TopicKind
	ID   string
}

// Name renders the canonical topic string.
func (t Topic) Name() string {
	switch t.Kind {
	case TopicUserPrivate:
		return userPrivatePrefix + t.ID
	case TopicChannelPrivate:
		return channelPrivatePrefix + t.ID
	default:
		return channelPresencePrefix + t.ID
	}
}

// UserTopic returns the private mailbox topic for one principal.
func UserTopic(userID string) Topic {
	return Topic{Kind: TopicUserPrivate, ID: userID}
}

// ChannelTopic returns the shared topic for one channel.
func ChannelTopic(channelID string) Topic {
	return Topic{Kind: TopicChannelPrivate, ID: channelID}
}

// ParseTopic classifies a raw topic name. A name with an unknown prefix or an
// empty embedded id is ErrInvalidTopic.
func ParseTopic(name string) (Topic, error) {
	var t Topic
	switch {
	case strings.HasPrefix(name, userPrivatePrefix):
		t = Topic{Kind: TopicUserPrivate, ID: strings.TrimPrefix(name, userPrivatePrefix)}
	case strings.HasPrefix(name, channelPrivatePrefix):
		t = Topic{Kind: TopicChannelPrivate, ID: strings.TrimPrefix(name, channelPrivatePrefix)}
	case strings.HasPrefix(name, channelPresencePrefix):
		t = Topic{Kind: TopicChannelPresence, ID: strings.TrimPrefix(name, channelPresencePrefix)}
	default:
		return Topic{}, fmt.Errorf("topic %q: %w", name, domain.ErrInvalidTopic)
	}
	if t.ID == "" {
		return Topic{}, fmt.Errorf("topic %q: %w", name, domain.ErrInvalidTopic)
	}
	return t, nil
}
