package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"board-api/api"
	"board-api/domain"
	"board-api/realtime"
	"board-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing storage config")
	}
	tables := storage.TableNames{
		Channels: envOr("CHANNELS_TABLE", "channels"),
		Shares:   envOr("SHARES_TABLE", "shares"),
		Users:    envOr("USERS_TABLE", "users"),
		Columns:  envOr("COLUMNS_TABLE", "columns"),
		Cards:    envOr("CARDS_TABLE", "cards"),
		Tasks:    envOr("TASKS_TABLE", "tasks"),
	}
	store, err := storage.New(connStr, tables)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	logger := log.New()

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(redisOptions(redisConn))
	} else {
		logger.Warn("no redis configured; real-time fan-out, caching and idempotency are disabled")
	}

	var lists api.Lister = store
	var columnStore domain.ColumnStorage = store
	var cardStore domain.CardStorage = store
	var taskStore domain.TaskStorage = store
	var deduper api.Deduper
	if rc != nil {
		cacheTTL := durationOr("SIBLINGS_CACHE_TTL", 5*time.Minute)
		cache := storage.NewCache(store, rc, cacheTTL)
		lists = cache
		columnStore = cache
		cardStore = cache
		taskStore = cache
		deduper = api.NewRedisDeduper(rc, durationOr("DEDUPER_TTL", 24*time.Hour))
	}

	oracle := domain.NewOracle(store)

	var transport realtime.Transport
	if rc != nil {
		secret := os.Getenv("REALTIME_GRANT_SECRET")
		if secret == "" {
			log.Fatal("REALTIME_GRANT_SECRET must be set when redis is configured")
		}
		transport = realtime.NewRedisTransport(rc, []byte(secret), durationOr("REALTIME_GRANT_TTL", 0))
	}
	bus := realtime.NewBroadcaster(transport, oracle, logger)
	access := realtime.NewAuthorizer(transport, oracle, store, logger)

	localMode := os.Getenv("LOCAL_AUTH_MODE") != ""
	var auth *api.Auth
	if localMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		authDomain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.DecompressRequests())

	api.Register(e, api.Deps{
		Columns: domain.NewColumnService(columnStore),
		Cards:   domain.NewCardService(cardStore),
		Tasks:   domain.NewTaskService(taskStore),
		Lists:   lists,
		Oracle:  oracle,
		Auth:    auth,
		Bus:     bus,
		Access:  access,
		Deduper: deduper,
		Logger:  logger,
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("BOARD_API_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions parses either a redis URL or the comma-separated
// host,password=...,ssl=true form used by managed caches.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func durationOr(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}
