package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metergate/internal/config"
	"github.com/kailas-cloud/metergate/internal/domain"
	logpkg "github.com/kailas-cloud/metergate/internal/logger"
	auditrepo "github.com/kailas-cloud/metergate/internal/repository/audit"
	"github.com/kailas-cloud/metergate/internal/transport/identity"
	"github.com/kailas-cloud/metergate/internal/transport/ledger"
	"github.com/kailas-cloud/metergate/internal/transport/local"
	"github.com/kailas-cloud/metergate/internal/transport/metered"
	"github.com/kailas-cloud/metergate/internal/usecase/reconcile"
	"github.com/kailas-cloud/metergate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting metergate demo",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("ledger_url", cfg.Ledger.BaseURL),
		zap.String("subscription_id", cfg.Account.SubscriptionID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ephemeral local host: a stand-in paywalled service plus /metrics.
	host := local.NewServer(logger)
	hostURL, err := host.Start(ctx)
	if err != nil {
		logger.Fatal("Failed to start local host", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := host.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during host shutdown", zap.Error(err))
		}
	}()
	logger.Info("Local host ready", zap.String("url", hostURL))

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}

	ledgerClient := ledger.NewClient(ledger.Config{
		BaseURL:    cfg.Ledger.BaseURL,
		APIKey:     cfg.Ledger.APIKey,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	identityClient := identity.NewClient(identity.Config{
		BaseURL:    cfg.Identity.BaseURL,
		APIKey:     cfg.Identity.APIKey,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	invoker := metered.NewInvoker(metered.Config{
		HTTPClient: httpClient,
		Logger:     logger,
	})

	engine := reconcile.New(ledgerClient, identityClient, invoker).
		WithSettlePolicy(reconcile.SettlePolicy{
			MinDelay:     cfg.SettleMinDelay(),
			PollInterval: cfg.SettlePollInterval(),
			MaxWait:      cfg.SettleMaxWait(),
		}).
		WithLogger(logger)

	// Audit trail is optional: enabled only when redis addresses are configured.
	if len(cfg.Audit.Addrs) > 0 {
		store, err := auditrepo.NewStore(auditrepo.Config{
			Addrs:     cfg.Audit.Addrs,
			Password:  cfg.Audit.Password,
			KeyPrefix: cfg.Audit.KeyPrefix,
			Keep:      cfg.Audit.Keep,
		})
		if err != nil {
			logger.Fatal("Failed to connect audit store", zap.Error(err))
		}
		defer store.Close()
		engine = engine.WithRecorder(store)
		logger.Info("Audit trail enabled", zap.Strings("addrs", cfg.Audit.Addrs))
	}

	policy := domain.ChargePolicy{
		Type:       domain.ChargeType(cfg.Charge.Type),
		MinCredits: cfg.Charge.MinCredits,
		MaxCredits: cfg.Charge.MaxCredits,
	}

	// Two demo cycles against the bound service: a parameterized call and a
	// default one. Each cycle funds the balance, invokes and verifies the
	// settled charge.
	cycles := []reconcile.Cycle{
		{
			SubscriptionID: cfg.Account.SubscriptionID,
			AccountAddress: cfg.Account.Address,
			Params:         map[string]string{"name": "Ada"},
			Policy:         policy,
			MinBalance:     cfg.TopUp.MinBalance,
			MaxTopUps:      cfg.TopUp.MaxAttempts,
		},
		{
			SubscriptionID: cfg.Account.SubscriptionID,
			AccountAddress: cfg.Account.Address,
			Policy:         policy,
			MinBalance:     cfg.TopUp.MinBalance,
			MaxTopUps:      cfg.TopUp.MaxAttempts,
		},
	}

	for i, cycle := range cycles {
		obs, err := engine.Run(ctx, cycle)
		if err != nil {
			logger.Error("Cycle failed",
				zap.Int("cycle", i+1),
				zap.Int("balance_before", obs.BalanceBefore),
				zap.Int("balance_after", obs.BalanceAfter),
				zap.Error(err),
			)
			continue
		}
		logger.Info("Cycle completed",
			zap.Int("cycle", i+1),
			zap.Int("balance_before", obs.BalanceBefore),
			zap.Int("balance_after", obs.BalanceAfter),
			zap.Int("observed_charge", obs.ObservedCharge()),
			zap.Int("expected_charge", obs.ExpectedCharge),
		)
	}

	if ctx.Err() != nil {
		logger.Info("Received shutdown signal")
	}

	logger.Info("Demo finished")
}
