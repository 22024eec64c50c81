package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/config"
	pgclient "hermes/internal/adapters/postgres"
	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/internal/domain/user"
	pgrepo "hermes/internal/repository/postgres"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Seeds demo users, portfolios and signals for local development.
func main() {
	dryRun := flag.Bool("dry-run", false, "List what would be seeded without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infow("Starting seeder",
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	users := demoUsers()
	signals := demoSignals()

	if *dryRun {
		log.Infow("Dry run", "users", len(users), "signals", len(signals))
		return
	}

	pg, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	ctx := context.Background()
	userService := user.NewService(pgrepo.NewUserRepository(pg.DB()))
	signalRepo := pgrepo.NewSignalRepository(pg.DB())
	portfolioRepo := pgrepo.NewPortfolioRepository(pg.DB())

	seeded := 0
	for _, u := range users {
		if _, err := userService.GetByTelegramID(ctx, u.TelegramID); err == nil {
			log.Debugw("User already seeded", "telegram_id", u.TelegramID)
			continue
		} else if !errors.Is(err, errors.ErrNotFound) {
			log.Fatalf("Failed to check user: %v", err)
		}

		if err := userService.Register(ctx, u); err != nil {
			log.Fatalf("Failed to seed user: %v", err)
		}
		if err := portfolioRepo.Upsert(ctx, demoPortfolio(u.ID)); err != nil {
			log.Fatalf("Failed to seed portfolio: %v", err)
		}
		seeded++
	}

	for _, sig := range signals {
		if err := signalRepo.Create(ctx, sig); err != nil {
			log.Fatalf("Failed to seed signal: %v", err)
		}
	}

	log.Infow("Seeding complete", "users", seeded, "signals", len(signals))
}

// Registration fills in identifiers and timestamps.
func demoUsers() []*user.User {
	levels := []signal.RiskLevel{signal.RiskLow, signal.RiskMedium, signal.RiskHigh}

	users := make([]*user.User, 0, len(levels))
	for i, level := range levels {
		users = append(users, &user.User{
			TelegramID:        int64(100000 + i),
			TelegramUsername:  "demo_" + level.String(),
			RiskLevel:         level,
			ExchangeConnected: true,
			AutoTradeEnabled:  true,
		})
	}
	return users
}

func demoPortfolio(userID uuid.UUID) *portfolio.Snapshot {
	return &portfolio.Snapshot{
		UserID:      userID,
		TotalValue:  decimal.NewFromInt(10000),
		FreeCapital: decimal.NewFromInt(10000),
		RefreshedAt: time.Now().UTC(),
	}
}

func demoSignals() []*signal.Signal {
	now := time.Now().UTC()
	return []*signal.Signal{
		{
			ID:        uuid.New(),
			Type:      signal.TypeBuy,
			Token:     "BTC",
			Price:     decimal.NewFromInt(45000),
			RiskLevel: signal.RiskMedium,
			CreatedAt: now,
			ExpiresAt: now.Add(15 * time.Minute),
		},
		{
			ID:        uuid.New(),
			Type:      signal.TypeBuy,
			Token:     "ETH",
			Price:     decimal.NewFromInt(3500),
			RiskLevel: signal.RiskHigh,
			CreatedAt: now,
			// Already expired: claimed by the engine on its next run
			ExpiresAt: now.Add(-time.Minute),
		},
	}
}
