package custody

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/openwealth/custody/pkg/events"
	"github.com/openwealth/custody/pkg/store"
	"github.com/openwealth/custody/pkg/store/surrealstore"
)

// App holds the application state: the store, the event publisher and the
// service wired on top of them.
type App struct {
	service *Service
	store   store.Store
	pub     events.Publisher
	config  *Config
	log     zerolog.Logger
}

// New connects to SurrealDB, wires the event publisher (or a no-op one when
// publication is disabled) and builds the service.
func New(config *Config) (*App, error) {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "custody").Logger()

	st, err := surrealstore.New(
		config.SurrealDBURL,
		config.SurrealDBNS,
		config.SurrealDBDB,
		config.SurrealDBUser,
		config.SurrealDBPass,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	log.Info().Str("url", config.SurrealDBURL).Msg("connected to SurrealDB")

	var pub events.Publisher = events.NoopPublisher{}
	if config.EventsEnabled {
		broker, err := events.NewRabbitBroker(
			config.AMQPURL,
			config.Exchange,
			config.CustodianTopic,
			config.TransactionTopic,
		)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		pub = events.NewPublisher(broker, events.Config{
			CustodianTopic:   config.CustodianTopic,
			TransactionTopic: config.TransactionTopic,
			MaxAttempts:      config.PublishAttempts,
			RetryBase:        config.PublishRetryBase,
		}, log)
		log.Info().Str("exchange", config.Exchange).Msg("connected to RabbitMQ")
	} else {
		log.Info().Msg("event publication disabled")
	}

	app := &App{
		service: NewService(st, pub, config, log),
		store:   st,
		pub:     pub,
		config:  config,
		log:     log,
	}
	return app, nil
}

// Close drains the publisher and closes the store.
func (a *App) Close() error {
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn().Err(err).Msg("publisher close failed")
		}
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Service returns the custody service (useful for testing).
func (a *App) Service() *Service {
	return a.service
}

// Main dispatches a parsed command.
func (a *App) Main(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *RunCommand:
		return a.Run(ctx, c)
	case *SeedCommand:
		return a.RunSeed(ctx, c)
	case *CheckCommand:
		return a.RunCheck(ctx, c)
	default:
		return fmt.Errorf("unknown command: %s", cmd.Name())
	}
}

// RunSeed migrates the schema, then wipes and reloads the collections from
// the fixture directory named by the command.
func (a *App) RunSeed(ctx context.Context, cmd *SeedCommand) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	stats, err := a.service.Seed(ctx, os.DirFS(cmd.Dir))
	if err != nil {
		return err
	}
	a.log.Info().
		Int("custodians", stats.Custodians).
		Int("portfolios", stats.Portfolios).
		Int("accounts", stats.Accounts).
		Int("positions", stats.Positions).
		Int("transactions", stats.Transactions).
		Msg("seed complete")
	return nil
}

// RunCheck scans for dangling parent references and fails when any exist.
func (a *App) RunCheck(ctx context.Context, cmd *CheckCommand) error {
	report, err := a.service.CheckConsistency(ctx)
	if err != nil {
		return err
	}
	for entity, n := range report.Scanned {
		a.log.Info().Str("collection", entity).Int("documents", n).Msg("scanned")
	}
	if !report.OK() {
		for _, d := range report.Dangling {
			a.log.Error().
				Str("entity", d.Entity).
				Str("id", d.ID).
				Str("parent", d.Parent).
				Str("parent_id", d.ParentID).
				Msg("dangling parent reference")
		}
		return fmt.Errorf("consistency check failed: %d dangling references", len(report.Dangling))
	}
	a.log.Info().Msg("consistency check passed")
	return nil
}
