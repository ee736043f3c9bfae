package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Noel-Mtf/yesshare/handlers"
	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/config"
	"github.com/Noel-Mtf/yesshare/internal/database"
	"github.com/Noel-Mtf/yesshare/internal/identity"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/sessions"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/storage"
	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/internal/tokens"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
	"github.com/Noel-Mtf/yesshare/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

const sweepInterval = time.Minute

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal, LOG_FORMAT: json|console
	logger.Setup(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v",
		cfg.Keycloak.Enabled(), cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	deps := map[string]bool{}

	// Redis backs the token blacklist, sessions and optionally the rate limiter.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
			defer rdb.Close()
		}
		deps["redis"] = rdb != nil
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	var sessionRepo sessions.Repository
	if rdb != nil {
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
	}

	// MongoDB holds the data tree; without it everything lives in memory.
	var tree store.Tree = store.NewMemoryTree()
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB, using in-memory tree: %v", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			mt, err := store.NewMongoTree(ctx, db.Collection("tree"))
			if err != nil {
				logger.Fatalf("mongo tree: %v", err)
			}
			tree = mt
			if sessionRepo == nil {
				sessionRepo = sessions.NewMongoRepository(db.Collection("sessions"))
			}
		}
		deps["mongo"] = isMongo(tree)
	}
	if sessionRepo == nil {
		logger.Warn("no session store configured, sessions are kept in memory")
		sessionRepo = sessions.NewMemoryRepository()
	}

	// Frame documents go to MinIO when configured.
	var blobs render.Blobs = render.NewMemoryBlobs()
	if cfg.MinIO.Enabled() {
		ms, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			logger.Warnf("minio unavailable, keeping frames in memory: %v", err)
		} else {
			blobs = render.NewMinioBlobs(ms, "frames/")
		}
		deps["minio"] = err == nil
	}

	pageSvc := pages.NewService(pages.NewTreeRepository(tree))
	userSvc := users.NewService(users.NewTreeUserRepository(tree), pageSvc)
	sessionSvc := sessions.NewService(sessionRepo)
	blacklist := sessions.NewBlacklist(rdb)

	reg := viewer.NewRegistry(viewer.Options{
		Blobs:    blobs,
		Profiles: userSvc,
		Debounce: cfg.Limits.SlugDebounce,
		IdleTTL:  cfg.Limits.ViewerIdleTTL,
	})
	go reg.Run(ctx, sweepInterval)

	d := handlers.Deps{
		Limits:   cfg.Limits,
		Viewers:  reg,
		Blobs:    blobs,
		Pages:    pageSvc,
		Slugs:    slug.NewChecker(tree),
		Users:    userSvc,
		Comments: comments.NewService(tree),
	}
	if cfg.Keycloak.Enabled() {
		kc := identity.NewKeycloak(identity.KeycloakConfig{
			URL:           cfg.Keycloak.URL,
			Realm:         cfg.Keycloak.Realm,
			ClientID:      cfg.Keycloak.ClientID,
			ClientSecret:  cfg.Keycloak.ClientSecret,
			AllowInsecure: cfg.Keycloak.AllowInsecure,
		})
		d.Auth = handlers.NewAuthHandler(cfg, kc, userSvc, sessionSvc, blacklist)
		d.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
		d.Revocations = blacklist
	} else {
		logger.Warn("keycloak not configured, auth routes disabled and the service is read-only")
	}
	handlers.RegisterRoutes(r, d)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	// ready only when every configured backend answered at startup
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		for _, ok := range deps {
			ready = ready && ok
		}
		body := gin.H{"deps": deps, "viewers": reg.Len(), "uptime": time.Since(startTime).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting yesshare on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := reg.Close(sctx); err != nil {
		logger.Warnf("viewer shutdown: %v", err)
	}
}

func isMongo(t store.Tree) bool {
	_, ok := t.(*store.MongoTree)
	return ok
}

// cors is a permissive policy for the host page during development.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+handlers.ViewerHeader)
		h.Set("Access-Control-Expose-Headers", "Content-Length, "+handlers.ViewerHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
