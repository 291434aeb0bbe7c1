package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

func testTransport(t *testing.T, secret []byte) (*RedisTransport, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTransport(client, secret, time.Minute), mr
}

func TestRedisTransportPublish(t *testing.T) {
	transport, mr := testTransport(t, []byte("s3cret"))

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = sub.Close() })
	pubsub := sub.Subscribe(context.Background(), "private-channel-ch1")
	t.Cleanup(func() { _ = pubsub.Close() })
	if _, err := pubsub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := transport.Publish(context.Background(), "private-channel-ch1", []byte(`{"type":"card:move"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := pubsub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Payload != `{"type":"card:move"}` {
		t.Fatalf("payload = %s", msg.Payload)
	}
}

func parseGrant(t *testing.T, secret []byte, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse grant: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		t.Fatalf("grant not valid: %+v", parsed)
	}
	return claims
}

func TestAuthorizePrivateSignsConnectionAndTopic(t *testing.T) {
	secret := []byte("s3cret")
	transport, _ := testTransport(t, secret)

	grant, err := transport.AuthorizePrivate("conn1", "private-channel-ch1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	claims := parseGrant(t, secret, grant.Auth)
	if claims["conn"] != "conn1" || claims["topic"] != "private-channel-ch1" {
		t.Fatalf("claims = %+v", claims)
	}
	if _, ok := claims["member"]; ok {
		t.Fatal("private grant must not carry a member claim")
	}
	if grant.Member != nil {
		t.Fatal("private grant must not expose a member")
	}
}

func TestAuthorizePresenceEmbedsMember(t *testing.T) {
	secret := []byte("s3cret")
	transport, _ := testTransport(t, secret)
	member := NewMemberIdentity("u1", "tab1", "Ada", "")

	grant, err := transport.AuthorizePresence("conn1", "presence-channel-ch1", member)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	claims := parseGrant(t, secret, grant.Auth)
	raw, ok := claims["member"].(string)
	if !ok || raw == "" {
		t.Fatalf("member claim missing: %+v", claims)
	}
	if grant.Member == nil || grant.Member.MemberID != "u1.tab1" {
		t.Fatalf("grant member = %+v", grant.Member)
	}
}

func TestGrantExpiryBounded(t *testing.T) {
	secret := []byte("s3cret")
	transport, _ := testTransport(t, secret)

	grant, err := transport.AuthorizePrivate("conn1", "private-user-u1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	claims := parseGrant(t, secret, grant.Auth)
	exp, ok := claims["exp"].(float64)
	if !ok {
		t.Fatalf("exp claim missing: %+v", claims)
	}
	ttl := time.Until(time.Unix(int64(exp), 0))
	if ttl <= 0 || ttl > time.Minute+time.Second {
		t.Fatalf("grant ttl %v outside the configured bound", ttl)
	}
}

func TestGrantRejectedWithWrongSecret(t *testing.T) {
	transport, _ := testTransport(t, []byte("right"))

	grant, err := transport.AuthorizePrivate("conn1", "private-user-u1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	_, err = jwt.Parse(grant.Auth, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil {
		t.Fatal("grant verified under the wrong secret")
	}
}
