package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	httpserver "github.com/ltessier/courier/internal/adapters/http"
	"github.com/ltessier/courier/internal/adapters/id"
	"github.com/ltessier/courier/internal/adapters/postgres"
	redisadapter "github.com/ltessier/courier/internal/adapters/redis"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/auth"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/ratelimit"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the courier API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}

	cacheClient, err := redisadapter.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer cacheClient.Close()

	pubsubClient := cacheClient
	if cfg.Redis.PubSubURL != cfg.Redis.URL {
		pubsubClient, err = redisadapter.NewClient(ctx, cfg.Redis.PubSubURL)
		if err != nil {
			return err
		}
		defer pubsubClient.Close()
	}

	// Repositories.
	users := postgres.NewUserRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	conversations := postgres.NewConversationRepository(pool)
	participants := postgres.NewParticipantRepository(pool)
	messages := postgres.NewMessageRepository(pool)
	statuses := postgres.NewMessageStatusRepository(pool)
	contacts := postgres.NewContactRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// Cache-side adapters.
	cache := redisadapter.NewMessageCache(cacheClient, cfg.Cache.RecentTTL, cfg.Cache.UnreadTTL, cfg.Cache.StatusTTL)
	presenceStore := redisadapter.NewPresenceStore(cacheClient, cfg.Presence.TTL)
	fabric := redisadapter.NewFabric(pubsubClient)
	limiter := ratelimit.New(redisadapter.NewLimiterStore(cacheClient))

	ids := id.New()
	issuer := auth.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)

	hub := realtime.NewHub()
	broker := realtime.NewBroker(hub, fabric)

	// Services.
	authSvc := services.NewAuthService(users, sessions, issuer, broker, ids, cfg.Auth.RefreshSecret, cfg.Auth.RefreshTTL)
	userSvc := services.NewUserService(users)
	contactSvc := services.NewContactService(contacts, users)
	convSvc := services.NewConversationService(txManager, conversations, participants, users, broker, ids)
	msgSvc := services.NewMessageService(txManager, messages, statuses, conversations, participants, contacts, users, cache, broker, limiter, ids)
	retrievalSvc := services.NewRetrievalService(messages, conversations, participants, cache)
	presenceSvc := services.NewPresenceService(presenceStore, contacts, users, broker)

	server := httpserver.NewServer(cfg, httpserver.Deps{
		Issuer:        issuer,
		Hub:           hub,
		IDs:           ids,
		Auth:          authSvc,
		Users:         userSvc,
		Contacts:      contactSvc,
		Conversations: convSvc,
		Messages:      msgSvc,
		Retrieval:     retrievalSvc,
		Presence:      presenceSvc,
		DBPing:        pool.Ping,
		CachePing:     func(ctx context.Context) error { return cacheClient.Ping(ctx).Err() },
	})

	// Background loops: fabric consumer, presence sweeper, expired
	// session cleanup.
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("fabric consumer stopped", "error", err)
		}
	}()
	go presenceSvc.RunSweeper(ctx)
	go limiter.RunSweep(ctx, time.Minute)
	go runSessionCleanup(ctx, sessions)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "grace", cfg.Server.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	// Flush a close notice to every live connection before the listener
	// drains.
	if frame, err := protocol.Encode(protocol.TypeForceDisconnect, &protocol.ForceDisconnect{Reason: "server_shutdown"}); err == nil {
		hub.Shutdown(frame)
	}
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := fabric.Close(); err != nil {
		slog.Warn("fabric close error", "error", err)
	}
	return nil
}

// runSessionCleanup deletes expired sessions hourly.
func runSessionCleanup(ctx context.Context, sessions ports.SessionRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := sessions.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("expired sessions deleted", "count", deleted)
			}
		}
	}
}
