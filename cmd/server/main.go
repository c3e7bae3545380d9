package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/veraproof/verification-core/internal/api"
	"github.com/veraproof/verification-core/internal/apikey"
	"github.com/veraproof/verification-core/internal/artifact"
	"github.com/veraproof/verification-core/internal/classifier"
	"github.com/veraproof/verification-core/internal/config"
	"github.com/veraproof/verification-core/internal/crypto"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/middleware"
	"github.com/veraproof/verification-core/internal/quota"
	"github.com/veraproof/verification-core/internal/ratelimit"
	"github.com/veraproof/verification-core/internal/tokens"
	"github.com/veraproof/verification-core/internal/verify"
	"github.com/veraproof/verification-core/internal/vsession"
	"github.com/veraproof/verification-core/internal/webhook"
)

const serviceName = "verification-core"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("warning: redis unreachable at startup (%v); rate limiting and concurrency gating will degrade per their redis-outage policy", err)
	}

	keyring := crypto.NewKeyring()
	if err := keyring.LoadFromEnv(); err != nil {
		log.Fatalf("failed to initialize keyring: %v", err)
	}

	watcher := config.NewWatcher("config/default.yaml", cfg.Flags)
	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	go watcher.Run(watcherCtx)

	// Rate/Quota Gate
	revocations := apikey.NewRevocationCache(rdb)
	keyService := apikey.NewService(data.APIKeyModel{DB: db}, revocations)
	apiKeyAuth := middleware.NewAPIKeyAuth(keyService)

	limiter := ratelimit.NewLimiter(rdb, envOr("RATE_LIMIT_SALT", "dev-salt-do-not-use-in-prod"))
	concurrency := ratelimit.NewConcurrencyGate(rdb, cfg.MaxConcurrentSessions)
	sweeper := ratelimit.NewSweeper(rdb, time.Minute)

	quotaMgr := quota.NewManager(data.TenantModel{DB: db}, quota.LogAlertSink{}, cfg.Flags.QuotaFailOpen)

	// Artifact storage
	retention := artifact.NewRetention(cfg.ObjectStoreLocalDir)
	artifacts := artifact.NewLocalSink(cfg.ObjectStoreLocalDir, []byte(cfg.JWTSecret), retention)

	// Webhooks
	var nc *nats.Conn
	if natsConn, err := nats.Connect(cfg.NATSUrl, nats.Name(serviceName)); err != nil {
		log.Printf("warning: nats connect failed (%v); webhook completion events disabled", err)
	} else {
		nc = natsConn
		defer nc.Close()
	}
	spool := webhook.NewSpool(envOr("WEBHOOK_SPOOL_DIR", "./data/webhook_spool"))
	dispatcher := webhook.NewDispatcher(data.WebhookModel{DB: db}, data.WebhookLogModel{DB: db}, keyring, spool, nc)

	// Session store
	sessions := vsession.NewStore(data.SessionModel{DB: db}, cfg.Flags.SessionStoreFailOpen)

	// Tier-2 classifier
	var classify classifier.Classifier
	if cfg.ClassifierEndpoint == "" {
		log.Printf("warning: CLASSIFIER_ENDPOINT not set, using deterministic mock classifier")
		classify = classifier.NewMockClassifier(time.Now().UnixNano())
	} else {
		classify = classifier.NewHTTPClassifier(cfg.ClassifierEndpoint, cfg.ClassifierTimeout)
	}
	classifierPool := classifier.NewPool(classify, cfg.ClassifierQueueSize, cfg.ClassifierWorkers)

	verifyDeps := &verify.Deps{
		Sessions:             sessions,
		Concurrency:          concurrency,
		Classifier:           classifierPool,
		ClassifierTimeout:    cfg.ClassifierTimeout,
		Artifacts:            artifacts,
		Webhooks:             dispatcher,
		Branding:             verify.DefaultBrandingProvider{},
		SessionExtension:     time.Duration(cfg.SessionExtensionMinutes) * time.Minute,
		SyntheticOpticalFlow: watcher.Flags().SyntheticOpticalFlow,
	}
	wsHandler := verify.NewWSHandler(verifyDeps)

	sessionHandlers := &api.SessionHandlers{
		Sessions:        sessions,
		Limiter:         limiter,
		Quota:           quotaMgr,
		Artifacts:       artifacts,
		FrontendBaseURL: cfg.FrontendBaseURL,
		SessionExpiry:   time.Duration(cfg.SessionExpirationMinutes) * time.Minute,
		SignedURLTTL:    time.Duration(cfg.SignedURLExpirationSecs) * time.Second,
		TenantRateLimit: ratelimit.LimitConfig{Rate: cfg.APIRateLimitPerMinute, Window: time.Minute},
	}

	tokenMgr := tokens.NewManager(cfg.JWTSecret)
	jwtAuth := middleware.NewJWTAuth(tokenMgr)
	dashboardHandlers := &api.DashboardHandlers{Sessions: data.SessionModel{DB: db}}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/sessions/", apiKeyAuth.Middleware(api.SessionsRouter(sessionHandlers)))
	mux.Handle("/api/v1/ws/verify/", apiKeyAuth.Middleware(wsHandler))
	mux.Handle("/api/v1/dashboard/", jwtAuth.Middleware(api.DashboardRouter(dashboardHandlers)))

	rlConfig := middleware.Config{
		GlobalIP: ratelimit.LimitConfig{Rate: 60, Window: time.Minute},
		Tenant:   ratelimit.LimitConfig{Rate: cfg.APIRateLimitPerMinute, Window: time.Minute},
	}
	rlMiddleware := middleware.NewRateLimitMiddleware(limiter, rlConfig)

	handler := middleware.CORS(middleware.RequestLogger(rlMiddleware.GlobalLimiter(mux)))

	// Background maintenance
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go retention.Sweep(bgCtx)
	go spool.RunReplayer(bgCtx, data.WebhookLogModel{DB: db}, 30*time.Second)
	go sweeper.Run(bgCtx)
	go runSessionReaper(bgCtx, data.SessionModel{DB: db}, time.Minute)
	go runQuotaReset(bgCtx, quotaMgr, time.Hour)

	port := envOr("PORT", "8080")
	server := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		log.Printf("starting %s on :%s", serviceName, port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutdown signal received")
	stopBackground()
	stopWatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	log.Println("server stopped")
}

// runSessionReaper periodically moves expired, still-live sessions to
// TIMEOUT so a session whose client never completes the flow does not stay
// in a live state forever. It only updates session rows; concurrency-gate
// slots are released by the WS handler when its connection ends.
func runSessionReaper(ctx context.Context, sessions data.SessionModel, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := sessions.ReapExpired(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("session reaper: sweep failed: %v", err)
				continue
			}
			if len(ids) > 0 {
				log.Printf("session reaper: timed out %d session(s)", len(ids))
			}
		}
	}
}

func runQuotaReset(ctx context.Context, mgr *quota.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if affected, err := mgr.ResetMonthlyQuotas(ctx); err != nil {
				log.Printf("quota reset: failed: %v", err)
			} else if affected > 0 {
				log.Printf("quota reset: reset %d tenant(s) whose billing cycle ended", affected)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
