// The gateway bridges WebSocket clients to the triage bot's NATS
// subjects: frames from a client become dm.inbound events, and the
// bot's dm.outbound.<user> replies are written back to the socket.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/redis/go-redis/v9"

	"github.com/modbot/triage/internal/config"
	"github.com/modbot/triage/internal/messaging"
	"github.com/modbot/triage/internal/protocol"
	"github.com/modbot/triage/internal/ratelimit"
)

type gateway struct {
	nats    *messaging.NATSClient
	limiter *ratelimit.Limiter // optional, throttles connection attempts
}

// handleUpgrade upgrades the HTTP request and bridges the connection.
// The client identifies itself with the ?user= query parameter.
func (g *gateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	if g.limiter != nil {
		if ok, _ := g.limiter.Allow(r.Context(), userID, ratelimit.RuleConnect); !ok {
			log.Printf("[gateway] connection rate limited user=%s", userID)
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	sessionID := uuid.New().String()
	log.Printf("[gateway] connected user=%s session=%s", userID, sessionID)
	go g.serve(conn, userID, sessionID)
}

// serve pumps one connection until the client goes away.
func (g *gateway) serve(conn net.Conn, userID, sessionID string) {
	var writeMu sync.Mutex
	defer func() {
		if err := g.nats.UnsubscribeOutboundDM(sessionID); err != nil {
			log.Printf("[gateway] unsubscribe session=%s: %v", sessionID, err)
		}
		conn.Close()
		log.Printf("[gateway] disconnected user=%s session=%s", userID, sessionID)
	}()

	// Bot replies flow back over the socket.
	err := g.nats.SubscribeOutboundDM(userID, sessionID, func(data []byte) {
		var out protocol.OutboundDM
		if err := json.Unmarshal(data, &out); err != nil {
			log.Printf("[gateway] bad outbound DM for user=%s: %v", userID, err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := wsutil.WriteServerText(conn, []byte(out.Content)); err != nil {
			log.Printf("[gateway] write to user=%s: %v", userID, err)
		}
		_ = conn.SetWriteDeadline(time.Time{})
	})
	if err != nil {
		log.Printf("[gateway] subscribe outbound for user=%s: %v", userID, err)
		return
	}

	// Client frames become inbound DM events.
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("[gateway] read from user=%s: %v", userID, err)
			}
			return
		}
		if len(data) == 0 {
			continue
		}

		dm := protocol.InboundDM{UserID: userID, Content: string(data), Ts: time.Now().UnixMilli()}
		payload, err := json.Marshal(dm)
		if err != nil {
			log.Printf("[gateway] marshal inbound DM: %v", err)
			continue
		}
		if err := g.nats.PublishInboundDM(payload); err != nil {
			log.Printf("[gateway] publish inbound DM for user=%s: %v", userID, err)
		}
	}
}

func main() {
	log.Println("Starting triage gateway...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "triage-gateway"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	g := &gateway{nats: natsClient}

	// Redis-backed connection throttling, if configured.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()
		g.limiter = ratelimit.NewLimiter(rdb)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleUpgrade)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Triage gateway listening on %s", cfg.GatewayAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway shutdown: %v", err)
	}
	natsClient.Close()
	if rdb != nil {
		rdb.Close()
	}
}
