package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

// Grant is the opaque signed material a client presents to the transport
// when attaching to an authorized topic. Member is set for presence topics
// only.
type Grant struct {
	Auth   string          `json:"auth"`
	Member *MemberIdentity `json:"member,omitempty"`
}

// Transport is the real-time collaborator: it delivers payloads to topics
// and mints subscription grants. The core never assumes durability from it.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	AuthorizePrivate(connectionID, topic string) (Grant, error)
	AuthorizePresence(connectionID, topic string, member MemberIdentity) (Grant, error)
}

// RedisTransport fans events out over redis pub/sub and signs grants as
// HS256 tokens binding the connection to the topic.
type RedisTransport struct {
	client   *redis.Client
	secret   []byte
	grantTTL time.Duration
}

const defaultGrantTTL = 2 * time.Minute

func NewRedisTransport(client *redis.Client, secret []byte, grantTTL time.Duration) *RedisTransport {
	if grantTTL <= 0 {
		grantTTL = defaultGrantTTL
	}
	return &RedisTransport{client: client, secret: secret, grantTTL: grantTTL}
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.client.Publish(ctx, topic, payload).Err()
}

func (t *RedisTransport) AuthorizePrivate(connectionID, topic string) (Grant, error) {
	token, err := t.sign(connectionID, topic, nil)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Auth: token}, nil
}

func (t *RedisTransport) AuthorizePresence(connectionID, topic string, member MemberIdentity) (Grant, error) {
	data, err := json.Marshal(member)
	if err != nil {
		return Grant{}, err
	}
	token, err := t.sign(connectionID, topic, data)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Auth: token, Member: &member}, nil
}

func (t *RedisTransport) sign(connectionID, topic string, memberData []byte) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"conn":  connectionID,
		"topic": topic,
		"iat":   now.Unix(),
		"exp":   now.Add(t.grantTTL).Unix(),
	}
	if len(memberData) > 0 {
		claims["member"] = string(memberData)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return token, nil
}
