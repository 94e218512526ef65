package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/usecase/record"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/infrastructure/auth"
	redisstore "github.com/journeygrid/journeygrid/internal/infrastructure/persistence/redis"
	"github.com/journeygrid/journeygrid/internal/interface/http/rest"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the sync server on server.addr until ctx is done
func (c *Container) Serve(ctx context.Context) error {
	cfg := c.cfg
	if cfg.JWTSecret() == "" {
		return errors.New("server.jwt_secret is required to serve")
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret(), auth.DefaultIssuer, cfg.TokenTTL())
	if err != nil {
		return err
	}

	client, err := redisstore.Connect(ctx, cfg.RedisURL())
	if err != nil {
		return err
	}
	defer client.Close()

	router := rest.NewRouter(rest.Deps{
		Journeys: record.NewService[journey.Journey](
			redisstore.NewCollection[journey.Journey](client, model.KindJourney),
			record.JourneyRules(),
			c.logger,
		),
		Journals: record.NewService[journal.Journal](
			redisstore.NewCollection[journal.Journal](client, model.KindJournal),
			record.JournalRules(),
			c.logger,
		),
		Tokens:         tokens,
		Logger:         c.logger,
		Metrics:        c.metrics,
		MetricsHandler: c.metrics.Handler(),
		CORSOrigins:    cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.logger.Info("server stopped")
	return nil
}
