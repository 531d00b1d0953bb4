// Package app wires stores, services, and background workers into one
// lifecycle-managed application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gasamara891-boop/river/internal/config"
	"github.com/gasamara891-boop/river/internal/httpapi"
	"github.com/gasamara891-boop/river/internal/metrics"
	"github.com/gasamara891-boop/river/internal/services/activity"
	"github.com/gasamara891-boop/river/internal/services/admin"
	"github.com/gasamara891-boop/river/internal/services/auth"
	"github.com/gasamara891-boop/river/internal/services/invest"
	"github.com/gasamara891-boop/river/internal/services/portfolio"
	"github.com/gasamara891-boop/river/internal/services/ticker"
	"github.com/gasamara891-boop/river/internal/services/withdraw"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/internal/storage/memory"
	"github.com/gasamara891-boop/river/internal/storage/supabasestore"
	"github.com/gasamara891-boop/river/internal/system"
	"github.com/gasamara891-boop/river/pkg/logger"
	"github.com/gasamara891-boop/river/supabase/client"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// Supabase-backed implementation, or the in-memory one when no Supabase
// client is configured.
type Stores struct {
	Profiles    storage.ProfileStore
	Investments storage.InvestmentStore
	Withdrawals storage.WithdrawalStore
	Wallets     storage.WalletAddressStore
	Activity    storage.ActivityStore
	Balances    storage.BalanceStore
}

// Options configures New.
type Options struct {
	Config   *config.Config
	Supabase *client.Client
	Realtime *client.RealtimeClient
	Stores   Stores
	Log      *logger.Logger
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Auth      *auth.Service
	Invest    *invest.Service
	Withdraw  *withdraw.Service
	Portfolio *portfolio.Service
	Admin     *admin.Service
	Activity  *activity.Service
	Feed      *admin.Feed
	Ticker    *ticker.Service
	Metrics   *metrics.Metrics

	// Handler is the fully assembled HTTP API.
	Handler http.Handler
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	if opts.Supabase != nil {
		sbStore := supabasestore.New(opts.Supabase)
		if stores.Profiles == nil {
			stores.Profiles = sbStore
		}
		if stores.Investments == nil {
			stores.Investments = sbStore
		}
		if stores.Withdrawals == nil {
			stores.Withdrawals = sbStore
		}
		if stores.Wallets == nil {
			stores.Wallets = sbStore
		}
		if stores.Activity == nil {
			stores.Activity = sbStore
		}
		if stores.Balances == nil {
			stores.Balances = sbStore
		}
	} else {
		mem := memory.New()
		log.Warn("no Supabase client configured; using in-memory stores")
		if stores.Profiles == nil {
			stores.Profiles = mem
		}
		if stores.Investments == nil {
			stores.Investments = mem
		}
		if stores.Withdrawals == nil {
			stores.Withdrawals = mem
		}
		if stores.Wallets == nil {
			stores.Wallets = mem
		}
		if stores.Activity == nil {
			stores.Activity = mem
		}
		if stores.Balances == nil {
			stores.Balances = mem
		}
	}

	manager := system.NewManager()
	m := metrics.New("river")
	httpClient := &http.Client{Timeout: 10 * time.Second}

	locator := activity.NewHTTPLocator(httpClient, log.WithField("component", "geo"))
	activitySvc := activity.New(stores.Activity, locator, log.WithField("component", "activity"))
	portfolioSvc := portfolio.New(stores.Profiles, stores.Investments, stores.Balances, log.WithField("component", "portfolio"))
	investSvc := invest.New(stores.Investments, stores.Wallets, log.WithField("component", "invest"))
	withdrawSvc := withdraw.New(stores.Withdrawals, portfolioSvc, log.WithField("component", "withdraw"))
	adminSvc := admin.New(stores.Profiles, stores.Investments, stores.Withdrawals, stores.Wallets, stores.Activity, log.WithField("component", "admin"))

	var authSvc *auth.Service
	if opts.Supabase != nil {
		authSvc = auth.New(opts.Supabase, stores.Profiles, activitySvc, log.WithField("component", "auth"))
	}

	feed := admin.NewFeed(adminSvc, opts.Realtime, log.WithField("component", "admin-feed"))
	if err := manager.Register(feed); err != nil {
		return nil, fmt.Errorf("register admin feed: %w", err)
	}

	var tickerSvc *ticker.Service
	if cfg.Ticker.Enabled {
		tickerSvc = ticker.New(httpClient, log.WithField("component", "ticker")).
			WithInterval(cfg.Ticker.Interval).
			WithOnRefresh(m.RecordPriceRefresh)
		if err := manager.Register(tickerSvc); err != nil {
			return nil, fmt.Errorf("register ticker: %w", err)
		}
	}

	handler, err := httpapi.NewHandler(httpapi.Config{
		JWTSecret:      cfg.Supabase.JWTSecret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst: cfg.RateLimit.Burst,
		RateLimit:      cfg.RateLimit.Enabled,
		AuditPath:      cfg.Audit.Path,
		AuditRingSize:  cfg.Audit.RingSize,
	}, httpapi.Services{
		Auth:      authSvc,
		Invest:    investSvc,
		Withdraw:  withdrawSvc,
		Portfolio: portfolioSvc,
		Admin:     adminSvc,
		Feed:      feed,
		Activity:  activitySvc,
		Ticker:    tickerSvc,
	}, m, log.WithField("component", "httpapi"))
	if err != nil {
		return nil, err
	}

	return &Application{
		manager:   manager,
		log:       log,
		Auth:      authSvc,
		Invest:    investSvc,
		Withdraw:  withdrawSvc,
		Portfolio: portfolioSvc,
		Admin:     adminSvc,
		Activity:  activitySvc,
		Feed:      feed,
		Ticker:    tickerSvc,
		Metrics:   m,
		Handler:   handler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
