// Package app wires the components together and owns the process
// lifecycle: store, channel consumers, scheduler and HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"thoughtpost/internal/scheduler"
	"thoughtpost/pkg/api"
	"thoughtpost/pkg/auth"
	"thoughtpost/pkg/channel"
	"thoughtpost/pkg/config"
	"thoughtpost/pkg/enrich"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/search"
	"thoughtpost/pkg/social"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/telemetry"
	"thoughtpost/pkg/thoughts"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	version string

	bus      *channel.Bus
	thoughts *thoughts.Service
	search   *search.Service

	srv *http.Server
}

// New opens the store, connects the channel and builds the services. It
// does not start consumers or the HTTP server; call Run for that.
func New(ctx context.Context, cfg *config.Config, addr, dbPath, version string) (*App, error) {
	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	a := &App{cfg: cfg, addr: addr, version: version}

	if cfg.Channel.RedisAddr != "" {
		bus, err := channel.Connect(ctx, cfg.Channel)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect channel at %s: %w", cfg.Channel.RedisAddr, err)
		}
		a.bus = bus
	} else {
		logger.Warn("channel_disabled", "reason", "no redis address configured")
	}

	publisher := social.NewService(store.UpdatePost)
	publisher.Register(models.PlatformLinkedIn, social.NewLinkedIn(cfg.Social.LinkedIn))
	publisher.Register(models.PlatformFacebook, social.Unconfigured{Platform: models.PlatformFacebook})
	publisher.Register(models.PlatformInstagram, social.Unconfigured{Platform: models.PlatformInstagram})

	var sender thoughts.RequestSender
	if a.bus != nil {
		sender = enrich.NewEmitter(a.bus, cfg.Channel.Topics.EnrichRequest)
		a.search = search.New(a.bus, cfg.Channel.Topics.SearchRequest, cfg.Search)
	} else {
		sender = disabledSender{}
	}
	a.thoughts = thoughts.NewService(sender, publisher)

	return a, nil
}

// Run starts the consumers, the scheduler and the HTTP server, then blocks
// until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.bus != nil {
		go a.consume(ctx, a.cfg.Channel.Topics.EnrichResponse, enrich.ResponseHandler(a.thoughts))
		go a.consume(ctx, a.cfg.Channel.Topics.SearchResponse, a.search.ResponseHandler())
		a.search.StartSweeper(ctx, time.Duration(a.cfg.Search.SweepInterval))
	}

	stopSched, err := scheduler.Start(ctx, a.thoughts, a.cfg.Scheduler)
	if err != nil {
		return err
	}
	defer stopSched()

	errCh := a.startHTTP()
	logger.Info("server_started", "addr", a.addr, "version", a.version)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			a.shutdown()
			return err
		}
		return nil
	}
}

func (a *App) consume(ctx context.Context, stream string, h channel.Handler) {
	if err := a.bus.Subscribe(ctx, stream, h); err != nil && ctx.Err() == nil {
		logger.Error("channel_subscribe_failed", "stream", stream, "error", err)
	}
}

func (a *App) startHTTP() <-chan error {
	router := api.NewRouter(api.Deps{Thoughts: a.thoughts, Search: a.search})
	wrapped := auth.Middleware(a.cfg.Security)(router)
	wrapped = telemetry.Middleware(wrapped)

	a.srv = &http.Server{Addr: a.addr, Handler: wrapped}
	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.ListenAndServe() }()
	return errCh
}

func (a *App) shutdown() {
	logger.Info("server_stopping")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Error("http_shutdown_failed", "error", err)
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logger.Error("channel_close_failed", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}

// disabledSender stands in when no channel is configured; posts stay
// PENDING until a bus is available.
type disabledSender struct{}

func (disabledSender) Send(ctx context.Context, p *models.ThoughtPost, opts enrich.Options) (bool, error) {
	logger.Warn("enrich_request_dropped", "post", p.ID, "reason", "channel disabled")
	return false, nil
}
