package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/logger"
)

// wallClock is the layout the booking endpoints accept for start times.
const wallClock = "2006-01-02 15:04"

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	StaffIDs        []int64
	ServiceID       int64
	BookingMinutes  int
	Days            int
	BookingRatio    float64
	RescheduleRatio float64
	CancelRatio     float64
	ReadRatio       float64
}

type target struct {
	StaffID int64
	Start   string
}

type created struct {
	ID      int64
	StaffID int64
}

// DataPool holds the open slots fetched before the run and the bookings made during it.
type DataPool struct {
	Targets  []target
	mu       sync.RWMutex
	bookings []created
}

func (dp *DataPool) AddBooking(b created) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) GetRandomBooking(rng *rand.Rand) (created, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return created{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

func (dp *DataPool) Bookings() []created {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make([]created, len(dp.bookings))
	copy(out, dp.bookings)
	return out
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking    OperationMetrics
	Reschedule OperationMetrics
	Cancel     OperationMetrics
	ReadSlots  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	log, err := logger.New(false, getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("simulator starting")

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("config",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int64s("staff", cfg.StaffIDs),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("reschedule", cfg.RescheduleRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sim.pool, err = sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("loaded open slots", zap.Int("slots", len(sim.pool.Targets)))

	sim.Run()
	sim.PrintReport()

	violations, err := sim.Verify(context.Background())
	if err != nil {
		log.Fatal("verify bookings", zap.Error(err))
	}
	if violations > 0 {
		log.Error("double booking detected", zap.Int("violations", violations))
		os.Exit(1)
	}
	log.Info("no double bookings found")
}

func loadConfig() (SimConfig, error) {
	_ = godotenv.Load()

	staff, err := parseIDs(getEnv("SIM_STAFF_IDS", "1"))
	if err != nil {
		return SimConfig{}, fmt.Errorf("SIM_STAFF_IDS: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		StaffIDs:        staff,
		ServiceID:       int64(getInt("SIM_SERVICE_ID", 1)),
		BookingMinutes:  getInt("SIM_BOOKING_MINUTES", 60),
		Days:            getInt("SIM_DAYS", 7),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.15),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
	}

	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return cfg, fmt.Errorf("SIM_DAYS must be > 0")
	}
	return cfg, nil
}

type slotRange struct {
	Slots []struct {
		Start time.Time `json:"start"`
	} `json:"slots"`
}

// loadDataPool asks the API for every open slot of the configured staff over the next few days.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}
	from := time.Now().AddDate(0, 0, 1)
	to := from.AddDate(0, 0, s.config.Days-1)

	for _, staffID := range s.config.StaffIDs {
		url := fmt.Sprintf("%s/staff/%d/slots/range?from=%s&to=%s&duration=%d&service_id=%d",
			s.config.APIBaseURL, staffID, from.Format("2006-01-02"), to.Format("2006-01-02"),
			s.config.BookingMinutes, s.config.ServiceID)

		var body slotRange
		status, err := s.call(ctx, http.MethodGet, url, nil, &body)
		if err != nil {
			return nil, fmt.Errorf("load slots for staff %d: %w", staffID, err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("load slots for staff %d: status %d", staffID, status)
		}
		for _, slot := range body.Slots {
			pool.Targets = append(pool.Targets, target{StaffID: staffID, Start: slot.Start.Format(wallClock)})
		}
	}

	if len(pool.Targets) == 0 {
		return nil, fmt.Errorf("no open slots loaded")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng, faker)
			case r < s.config.BookingRatio+s.config.RescheduleRatio:
				s.doReschedule(ctx, rng)
			case r < s.config.BookingRatio+s.config.RescheduleRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				s.doReadSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]

	req := map[string]any{
		"staff_id":         t.StaffID,
		"service_id":       s.config.ServiceID,
		"customer_id":      faker.Number(1000, 99999),
		"start":            t.Start,
		"duration_minutes": s.config.BookingMinutes,
	}

	start := time.Now()
	var resp struct {
		ID int64 `json:"id"`
	}
	status, err := s.call(ctx, http.MethodPost, s.config.APIBaseURL+"/bookings", req, &resp)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && resp.ID != 0 {
		s.pool.AddBooking(created{ID: resp.ID, StaffID: t.StaffID})
	}
	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomBooking(rng)
	if !ok {
		return
	}
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	if t.StaffID != b.StaffID {
		return
	}

	req := map[string]any{"start": t.Start, "duration_minutes": s.config.BookingMinutes}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPatch, fmt.Sprintf("%s/bookings/%d/schedule", s.config.APIBaseURL, b.ID), req, nil)
	latency := time.Since(start)

	s.metrics.Reschedule.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPatch, fmt.Sprintf("%s/bookings/%d/status", s.config.APIBaseURL, b.ID),
		map[string]string{"status": "cancelled"}, nil)
	latency := time.Since(start)

	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doReadSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	day := t.Start[:len("2006-01-02")]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet,
		fmt.Sprintf("%s/staff/%d/slots?date=%s&duration=%d&service_id=%d",
			s.config.APIBaseURL, t.StaffID, day, s.config.BookingMinutes, s.config.ServiceID), nil, nil)
	latency := time.Since(start)

	s.metrics.ReadSlots.Record(latency, err == nil && status == http.StatusOK, false)
}

type bookingState struct {
	ID      int64     `json:"id"`
	StaffID int64     `json:"staff_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Status  string    `json:"status"`
}

// Verify re-reads every booking the run created and counts overlapping active pairs per staff member.
func (s *Simulator) Verify(ctx context.Context) (int, error) {
	byStaff := make(map[int64][]bookingState)

	for _, b := range s.pool.Bookings() {
		var st bookingState
		status, err := s.call(ctx, http.MethodGet, fmt.Sprintf("%s/bookings/%d", s.config.APIBaseURL, b.ID), nil, &st)
		if err != nil {
			return 0, err
		}
		if status == http.StatusNotFound {
			continue
		}
		if status != http.StatusOK {
			return 0, fmt.Errorf("get booking %d: status %d", b.ID, status)
		}
		if st.Status == "cancelled" || st.Status == "no_show" {
			continue
		}
		byStaff[st.StaffID] = append(byStaff[st.StaffID], st)
	}

	violations := 0
	for staffID, list := range byStaff {
		sort.Slice(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if cur.Start.Before(prev.End) {
				violations++
				s.log.Error("overlapping bookings",
					zap.Int64("staff_id", staffID),
					zap.Int64("first", prev.ID),
					zap.Int64("second", cur.ID),
					zap.Time("first_end", prev.End),
					zap.Time("second_start", cur.Start),
				)
			}
		}
	}
	return violations, nil
}

// call sends body as JSON (when non-nil) and decodes a 2xx response into out (when non-nil).
func (s *Simulator) call(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Open slots targeted: %d\n", len(s.pool.Targets))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read slots", &s.metrics.ReadSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid staff id %q", part)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one staff id is required")
	}
	return out, nil
}

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
