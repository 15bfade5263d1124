package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/modbot/triage/internal/audit"
	"github.com/modbot/triage/internal/bot"
	"github.com/modbot/triage/internal/casestore"
	"github.com/modbot/triage/internal/config"
	"github.com/modbot/triage/internal/escalation"
	"github.com/modbot/triage/internal/messaging"
	"github.com/modbot/triage/internal/metrics"
	"github.com/modbot/triage/internal/platform"
	"github.com/modbot/triage/internal/protocol"
	"github.com/modbot/triage/internal/ratelimit"
	"github.com/modbot/triage/internal/scoring"
	"github.com/modbot/triage/internal/suspension"
)

// reportThrottle applies the report-submission rate limit. Redis errors
// fail open inside the limiter, so a denied submission always reflects a
// real over-limit count.
type reportThrottle struct {
	limiter *ratelimit.Limiter
}

func (t *reportThrottle) Allow(ctx context.Context, userID string) bool {
	ok, _ := t.limiter.Allow(ctx, userID, ratelimit.RuleReport)
	return ok
}

func main() {
	log.Println("Starting triage bot...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "triagebot"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Redis backs suspension enforcement and DM throttling, if configured.
	var suspender *suspension.Store
	var limiter *ratelimit.Limiter
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()
		suspender = suspension.NewStore(rdb)
		limiter = ratelimit.NewLimiter(rdb)
	}

	// Postgres-backed resolution audit log, if configured.
	var auditor *audit.Store
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		if err := audit.RunMigrations(cfg.MigrationsURL, cfg.PostgresDSN); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to open Postgres: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		auditor = audit.NewStore(db)
	}

	// Classifier aggregation. Missing classifiers degrade to fewer
	// attributes rather than a startup failure.
	var text scoring.TextScorer
	if cfg.PerspectiveURL != "" && cfg.PerspectiveKey != "" {
		text = scoring.NewPerspectiveClient(cfg.PerspectiveURL, cfg.PerspectiveKey)
	} else {
		log.Println("[triagebot] no Perspective credentials, text scoring disabled")
	}
	var image scoring.ImageScorer
	if cfg.MemeClassifierURL != "" {
		image = scoring.NewMemeClient(cfg.MemeClassifierURL)
	} else {
		log.Println("[triagebot] no meme classifier URL, image scoring disabled")
	}
	aggregator := scoring.NewAggregator(text, image, cfg.ScoringTimeout)

	pf := platform.NewNATSPlatform(natsClient)

	deps := bot.Deps{
		Store:        casestore.NewStore(),
		Scorer:       aggregator,
		Platform:     pf,
		Counters:     escalation.NewCounters(),
		ModChannelID: cfg.ModChannelID,
		Thresholds:   bot.Thresholds{Text: cfg.TextThreshold, Image: cfg.ImageThreshold},
	}
	if suspender != nil {
		deps.Suspender = suspender
	}
	if limiter != nil {
		deps.Throttle = &reportThrottle{limiter: limiter}
	}
	if auditor != nil {
		deps.Auditor = auditor
	}
	b := bot.New(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Direct messages drive the report and review conversations.
	err = natsClient.SubscribeInboundDM(func(data []byte) {
		var dm protocol.InboundDM
		if err := json.Unmarshal(data, &dm); err != nil {
			log.Printf("[triagebot] bad inbound DM: %v", err)
			return
		}
		if limiter != nil {
			if ok, _ := limiter.Allow(ctx, dm.UserID, ratelimit.RuleDM); !ok {
				log.Printf("[triagebot] rate limited user=%s", dm.UserID)
				return
			}
		}
		for _, reply := range b.HandleDM(ctx, dm) {
			out, err := json.Marshal(protocol.OutboundDM{UserID: dm.UserID, Content: reply, Ts: time.Now().UnixMilli()})
			if err != nil {
				log.Printf("[triagebot] marshal reply: %v", err)
				continue
			}
			if err := natsClient.PublishOutboundDM(dm.UserID, out); err != nil {
				log.Printf("[triagebot] publish reply to %s: %v", dm.UserID, err)
			}
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to inbound DMs: %v", err)
	}

	// Channel traffic drives the automated flagging pipeline.
	err = natsClient.SubscribeGuildMessages(func(data []byte) {
		var m protocol.ChannelMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[triagebot] bad channel message: %v", err)
			return
		}
		go b.HandleChannelMessage(ctx, m)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to channel messages: %v", err)
	}

	err = natsClient.SubscribeGuildEdits(func(data []byte) {
		var e protocol.EditEvent
		if err := json.Unmarshal(data, &e); err != nil {
			log.Printf("[triagebot] bad edit event: %v", err)
			return
		}
		go b.HandleEdit(ctx, e)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to edit events: %v", err)
	}

	// Prometheus scrape endpoint.
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	log.Printf("Triage bot running")
	log.Printf("  nats_url:     %s", cfg.NATSURL)
	log.Printf("  metrics_addr: %s", cfg.MetricsAddr)
	log.Printf("  mod_channel:  %s", cfg.ModChannelID)

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}
	natsClient.Close()
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
}
