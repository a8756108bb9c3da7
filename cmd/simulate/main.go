package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/staff-queue-scheduling/internal/config"
	"github.com/hackgods/staff-queue-scheduling/internal/db"
	"github.com/hackgods/staff-queue-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	AssignRatio float64
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
	PostgresDSN string
	Location    *time.Location
}

// ownerData is what the workers pick from for one owner.
type ownerData struct {
	ID       uuid.UUID
	Staff    []uuid.UUID
	Services []uuid.UUID
}

type DataPool struct {
	Owners       []ownerData
	mu           sync.RWMutex
	appointments map[uuid.UUID][]uuid.UUID // owner -> booked appointment ids
}

func (dp *DataPool) AddAppointment(ownerID, id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments[ownerID] = append(dp.appointments[ownerID], id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand, ownerID uuid.UUID) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	ids := dp.appointments[ownerID]
	if len(ids) == 0 {
		return uuid.Nil, false
	}
	return ids[rng.IntN(len(ids))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *slog.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("simulate", "prod")
	logger.Info("simulator starting",
		"duration", cfg.Duration, "workers", cfg.Workers,
		"assign", cfg.AssignRatio, "book", cfg.BookRatio, "cancel", cfg.CancelRatio, "read", cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("simulate"))
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		logger.Error("load data pool", "err", err)
		os.Exit(1)
	}
	logger.Info("loaded owners", "owners", len(dataPool.Owners))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()

	auditCtx, cancelAudit := context.WithTimeout(context.Background(), time.Minute)
	defer cancelAudit()

	owners := make([]uuid.UUID, len(dataPool.Owners))
	for i, o := range dataPool.Owners {
		owners[i] = o.ID
	}
	violations, err := audit(auditCtx, pgPool, cfg.Location, owners)
	if err != nil {
		logger.Error("audit failed", "err", err)
		os.Exit(1)
	}

	fmt.Println("INVARIANT AUDIT")
	if len(violations) == 0 {
		fmt.Println("  no violations")
		return
	}
	for _, v := range violations {
		fmt.Println("  " + v)
	}
	os.Exit(1)
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		AssignRatio: getFloat("SIM_ASSIGN_RATIO", 0.4),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.3),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.2),
		PostgresDSN: baseCfg.PostgresDSN,
		Location:    baseCfg.Location,
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}

	// Normalize ratios
	total := cfg.AssignRatio + cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total <= 0 {
		return SimConfig{}, fmt.Errorf("at least one SIM_*_RATIO must be > 0")
	}
	cfg.AssignRatio /= total
	cfg.BookRatio /= total
	cfg.CancelRatio /= total
	cfg.ReadRatio /= total

	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	byOwner := make(map[uuid.UUID]*ownerData)
	owner := func(id uuid.UUID) *ownerData {
		o, ok := byOwner[id]
		if !ok {
			o = &ownerData{ID: id}
			byOwner[id] = o
		}
		return o
	}

	rows, err := pool.Query(ctx, `SELECT owner_id, id FROM staff`)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	for rows.Next() {
		var ownerID, id uuid.UUID
		if err := rows.Scan(&ownerID, &id); err != nil {
			rows.Close()
			return nil, err
		}
		o := owner(ownerID)
		o.Staff = append(o.Staff, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT owner_id, id FROM services`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	for rows.Next() {
		var ownerID, id uuid.UUID
		if err := rows.Scan(&ownerID, &id); err != nil {
			rows.Close()
			return nil, err
		}
		o := owner(ownerID)
		o.Services = append(o.Services, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dp := &DataPool{appointments: make(map[uuid.UUID][]uuid.UUID)}
	for _, o := range byOwner {
		if len(o.Staff) > 0 && len(o.Services) > 0 {
			dp.Owners = append(dp.Owners, *o)
		}
	}
	if len(dp.Owners) == 0 {
		return nil, fmt.Errorf("no owners with staff and services, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := uint64(time.Now().UnixNano())
	rng := rand.New(rand.NewPCG(seed, uint64(workerID)))
	faker := gofakeit.New(seed + uint64(workerID))

	for ctx.Err() == nil {
		owner := s.pool.Owners[rng.IntN(len(s.pool.Owners))]

		r := rng.Float64()
		switch {
		case r < s.config.AssignRatio:
			s.doAssign(ctx, rng, owner)
		case r < s.config.AssignRatio+s.config.BookRatio:
			s.doBook(ctx, rng, faker, owner)
		case r < s.config.AssignRatio+s.config.BookRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng, owner)
		default:
			s.doReadQueue(ctx, owner)
		}
	}
}

func (s *Simulator) doAssign(ctx context.Context, rng *rand.Rand, owner ownerData) {
	staffID := owner.Staff[rng.IntN(len(owner.Staff))]
	body, _ := json.Marshal(map[string]string{"staff_id": staffID.String()})

	status, _, latency, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/owners/%s/queue/assign", owner.ID), body)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Assign.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker, owner ownerData) {
	day := time.Now().In(s.config.Location).AddDate(0, 0, 1+rng.IntN(2))
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location()).
		Add(time.Duration(rng.IntN(32)) * 15 * time.Minute)

	req := map[string]any{
		"customer_name": faker.Name(),
		"service_id":    owner.Services[rng.IntN(len(owner.Services))].String(),
		"start_time":    start,
		"end_time":      start.Add(time.Duration(2+rng.IntN(3)) * 15 * time.Minute),
	}
	if rng.IntN(2) == 0 {
		req["staff_id"] = owner.Staff[rng.IntN(len(owner.Staff))].String()
	}
	body, _ := json.Marshal(req)

	status, respBody, latency, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/owners/%s/appointments", owner.ID), body)
	if ctx.Err() != nil {
		return
	}
	success := err == nil && status == http.StatusCreated
	if success {
		var resp struct {
			Appointment struct {
				ID uuid.UUID `json:"id"`
			} `json:"appointment"`
		}
		if json.Unmarshal(respBody, &resp) == nil && resp.Appointment.ID != uuid.Nil {
			s.pool.AddAppointment(owner.ID, resp.Appointment.ID)
		}
	}
	s.metrics.Book.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand, owner ownerData) {
	apptID, ok := s.pool.RandomAppointment(rng, owner.ID)
	if !ok {
		return
	}

	status, _, latency, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/owners/%s/appointments/%s/cancel", owner.ID, apptID), nil)
	if ctx.Err() != nil {
		return
	}
	// Cancelling an already cancelled appointment is an expected conflict.
	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadQueue(ctx context.Context, owner ownerData) {
	status, _, latency, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/owners/%s/queue", owner.ID), nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ReadQueue.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) call(ctx context.Context, method, path string, body []byte) (int, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes(), latency, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Owners: %d\n", len(s.pool.Owners))
	fmt.Println()

	printOperationReport("Assign from queue", &s.metrics.Assign)
	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read queue", &s.metrics.ReadQueue)
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
