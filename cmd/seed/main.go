package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/staff-queue-scheduling/internal/config"
	"github.com/hackgods/staff-queue-scheduling/internal/db"
	"github.com/hackgods/staff-queue-scheduling/internal/logging"
	redisclient "github.com/hackgods/staff-queue-scheduling/internal/redis"
	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
)

// catalog maps a staff type to the services that need it.
var catalog = map[string][]string{
	"HAIR":    {"Haircut", "Colouring", "Blow Dry"},
	"NAILS":   {"Manicure", "Pedicure"},
	"MASSAGE": {"Deep Tissue Massage", "Hot Stone Massage"},
}

var durations = []time.Duration{30 * time.Minute, 45 * time.Minute, time.Hour}

type seedConfig struct {
	Owners          int
	StaffPerOwner   int
	WaitingPerOwner int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("seed", cfg.Env)
	sc := seedConfig{
		Owners:          getInt("SEED_OWNERS", 3),
		StaffPerOwner:   getInt("SEED_STAFF_PER_OWNER", 6),
		WaitingPerOwner: getInt("SEED_WAITING_PER_OWNER", 40),
	}
	logger.Info("seed starting", "owners", sc.Owners, "staff_per_owner", sc.StaffPerOwner, "waiting_per_owner", sc.WaitingPerOwner)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("seed"))
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	// Seeding runs alone, so in-process locks are enough for the reorder.
	svc := scheduling.NewService(scheduling.NewPgRepository(pool), redisclient.NewLocalLocker(5*time.Second), cfg.Location, logger)
	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	tomorrow := time.Now().In(cfg.Location).AddDate(0, 0, 1)

	for i := 0; i < sc.Owners; i++ {
		ownerID := uuid.New()

		services, err := seedServices(ctx, pool, ownerID)
		if err != nil {
			logger.Error("seed services", "owner_id", ownerID, "err", err)
			os.Exit(1)
		}
		if err := seedStaff(ctx, pool, faker, ownerID, sc.StaffPerOwner); err != nil {
			logger.Error("seed staff", "owner_id", ownerID, "err", err)
			os.Exit(1)
		}
		if err := seedWaiting(ctx, svc, faker, ownerID, services, tomorrow, sc.WaitingPerOwner); err != nil {
			logger.Error("seed waiting appointments", "owner_id", ownerID, "err", err)
			os.Exit(1)
		}

		// Printed bare so scripts can capture owner ids for the simulator.
		fmt.Println(ownerID)
	}

	logger.Info("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, ownerID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	for staffType, names := range catalog {
		for _, name := range names {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO services (id, owner_id, name, staff_type, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, ownerID, name, staffType)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	return ids, tx.Commit(ctx)
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, ownerID uuid.UUID, count int) error {
	types := make([]string, 0, len(catalog))
	for t := range catalog {
		types = append(types, t)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		availability := scheduling.Available
		if faker.Number(1, 10) == 1 {
			availability = scheduling.OnLeave
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, owner_id, name, service_type, daily_capacity, availability_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, uuid.New(), ownerID, faker.FirstName(), types[i%len(types)], faker.Number(3, 8), availability)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedWaiting books appointments without staff across business hours of day.
// Book leaves each one WAITING and renumbers the queue.
func seedWaiting(ctx context.Context, svc *scheduling.Service, faker *gofakeit.Faker, ownerID uuid.UUID, services []uuid.UUID, day time.Time, count int) error {
	open := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())

	for i := 0; i < count; i++ {
		start := open.Add(time.Duration(faker.Number(0, 31)) * 15 * time.Minute)
		_, err := svc.Book(ctx, ownerID, scheduling.BookRequest{
			CustomerName: faker.Name(),
			ServiceID:    services[faker.Number(0, len(services)-1)],
			Start:        start,
			End:          start.Add(durations[faker.Number(0, len(durations)-1)]),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
