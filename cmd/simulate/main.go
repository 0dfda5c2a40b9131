package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/config"
	"github.com/hackgods/medconnect/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	Patients      int
	Doctors       int
	RequestRatio  float64
	DecisionRatio float64
	BedRatio      float64
	ReadRatio     float64
	MaxBedStay    time.Duration
}

type account struct {
	username string
	token    string
}

type DataPool struct {
	Patients     []account
	Doctors      []account
	Symptoms     []string
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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
	Request   OperationMetrics
	Decision  OperationMetrics
	Allocate  OperationMetrics
	Discharge OperationMetrics
	Hospitals OperationMetrics
	MyList    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(baseCfg.LogLevel, baseCfg.LogFormat, "simulate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("request", cfg.RequestRatio),
		zap.Float64("decision", cfg.DecisionRatio),
		zap.Float64("bed", cfg.BedRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	pool, err := sim.prepare(ctx)
	cancel()
	if err != nil {
		log.Fatal("prepare data pool", zap.Error(err))
	}
	sim.pool = pool

	log.Info("data pool ready",
		zap.Int("patients", len(pool.Patients)),
		zap.Int("doctors", len(pool.Doctors)),
		zap.Int("symptoms", len(pool.Symptoms)),
	)

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		Patients:      getInt("SIM_PATIENTS", 50),
		Doctors:       getInt("SIM_DOCTORS", 5),
		RequestRatio:  getFloat("SIM_REQUEST_RATIO", 0.3),
		DecisionRatio: getFloat("SIM_DECISION_RATIO", 0.2),
		BedRatio:      getFloat("SIM_BED_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		MaxBedStay:    getDuration("SIM_MAX_BED_STAY", 20*time.Second),
	}

	total := cfg.RequestRatio + cfg.DecisionRatio + cfg.BedRatio + cfg.ReadRatio
	if total > 0 {
		cfg.RequestRatio /= total
		cfg.DecisionRatio /= total
		cfg.BedRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 || cfg.Doctors <= 0 {
		return fmt.Errorf("SIM_PATIENTS and SIM_DOCTORS must be > 0")
	}
	if cfg.MaxBedStay < time.Second {
		return fmt.Errorf("SIM_MAX_BED_STAY must be at least 1s")
	}
	return nil
}

// prepare registers fresh users through the API and loads the symptom list.
func (s *Simulator) prepare(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}
	run := uuid.NewString()[:8]

	for i := 0; i < s.config.Doctors; i++ {
		acc, err := s.register(ctx, fmt.Sprintf("dr.%s.%s.%d", strings.ToLower(gofakeit.LastName()), run, i), "doctor")
		if err != nil {
			return nil, fmt.Errorf("register doctor: %w", err)
		}
		pool.Doctors = append(pool.Doctors, acc)
	}
	for i := 0; i < s.config.Patients; i++ {
		acc, err := s.register(ctx, fmt.Sprintf("%s.%s.%d", strings.ToLower(gofakeit.FirstName()), run, i), "patient")
		if err != nil {
			return nil, fmt.Errorf("register patient: %w", err)
		}
		pool.Patients = append(pool.Patients, acc)
	}

	status, body, err := s.call(ctx, http.MethodGet, "/symptoms", "", nil)
	if err != nil {
		return nil, fmt.Errorf("load symptoms: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("load symptoms: status %d", status)
	}
	if err := json.Unmarshal(body, &pool.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if len(pool.Symptoms) == 0 {
		return nil, fmt.Errorf("no symptoms loaded")
	}

	return pool, nil
}

func (s *Simulator) register(ctx context.Context, username, role string) (account, error) {
	status, body, err := s.call(ctx, http.MethodPost, "/users", "", map[string]string{
		"username": username,
		"password": gofakeit.Password(true, true, true, false, false, 12),
		"role":     role,
	})
	if err != nil {
		return account{}, err
	}
	if status != http.StatusCreated {
		return account{}, fmt.Errorf("status %d: %s", status, body)
	}

	var sess struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &sess); err != nil {
		return account{}, err
	}
	return account{username: username, token: sess.Token}, nil
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
	cfg := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < cfg.RequestRatio:
				s.doRequest(ctx, rng)
			case r < cfg.RequestRatio+cfg.DecisionRatio:
				s.doDecision(ctx, rng)
			case r < cfg.RequestRatio+cfg.DecisionRatio+cfg.BedRatio:
				if rng.Intn(3) == 0 {
					s.doDischarge(ctx, rng)
				} else {
					s.doAllocate(ctx, rng)
				}
			default:
				if rng.Intn(2) == 0 {
					s.doListHospitals(ctx)
				} else {
					s.doMyAppointments(ctx, rng)
				}
			}
		}
	}
}

// doRequest diagnoses a random symptom set and books the first routed hospital.
func (s *Simulator) doRequest(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	n := 1 + rng.Intn(len(s.pool.Symptoms))
	symptoms := make([]string, 0, n)
	for _, i := range rng.Perm(len(s.pool.Symptoms))[:n] {
		symptoms = append(symptoms, s.pool.Symptoms[i])
	}

	start := time.Now()

	status, body, err := s.call(ctx, http.MethodPost, "/diagnoses", "", map[string]any{"symptoms": symptoms})
	if err != nil || status != http.StatusOK {
		s.metrics.Request.Record(time.Since(start), false, false)
		return
	}
	var diag struct {
		Hospitals []string `json:"hospitals"`
	}
	if err := json.Unmarshal(body, &diag); err != nil || len(diag.Hospitals) == 0 {
		s.metrics.Request.Record(time.Since(start), false, false)
		return
	}

	hospital := diag.Hospitals[rng.Intn(len(diag.Hospitals))]
	status, body, err = s.call(ctx, http.MethodPost, "/appointments", patient.token, map[string]string{"hospital": hospital})
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(appt.ID)
		}
	}

	s.metrics.Request.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doDecision(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	action := "accept"
	if rng.Intn(4) == 0 {
		action = "decline"
	}

	s.timed(&s.metrics.Decision, http.StatusOK, func() (int, error) {
		status, _, err := s.call(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/"+action, s.randomDoctor(rng).token, nil)
		return status, err
	})
}

func (s *Simulator) doAllocate(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	stay := time.Second + time.Duration(rng.Int63n(int64(s.config.MaxBedStay)))
	body := map[string]any{
		"bed_number":  1 + rng.Intn(30),
		"duration_ms": stay.Milliseconds(),
	}

	s.timed(&s.metrics.Allocate, http.StatusOK, func() (int, error) {
		status, _, err := s.call(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/bed", s.randomDoctor(rng).token, body)
		return status, err
	})
}

func (s *Simulator) doDischarge(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	s.timed(&s.metrics.Discharge, http.StatusOK, func() (int, error) {
		status, _, err := s.call(ctx, http.MethodDelete, "/appointments/"+apptID.String()+"/bed", s.randomDoctor(rng).token, nil)
		return status, err
	})
}

func (s *Simulator) doListHospitals(ctx context.Context) {
	s.timed(&s.metrics.Hospitals, http.StatusOK, func() (int, error) {
		status, _, err := s.call(ctx, http.MethodGet, "/hospitals", "", nil)
		return status, err
	})
}

func (s *Simulator) doMyAppointments(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	s.timed(&s.metrics.MyList, http.StatusOK, func() (int, error) {
		status, _, err := s.call(ctx, http.MethodGet, "/me/appointments", patient.token, nil)
		return status, err
	})
}

func (s *Simulator) randomDoctor(rng *rand.Rand) account {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
}

func (s *Simulator) timed(om *OperationMetrics, want int, fn func() (int, error)) {
	start := time.Now()
	status, err := fn()
	latency := time.Since(start)

	if err != nil {
		om.Record(latency, false, false)
		return
	}
	om.Record(latency, status == want, status == http.StatusConflict)
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Appointments created: %d\n", len(s.pool.appointments))
	fmt.Println()

	printOperationReport("Request appointment", &s.metrics.Request)
	printOperationReport("Accept/decline", &s.metrics.Decision)
	printOperationReport("Allocate bed", &s.metrics.Allocate)
	printOperationReport("Discharge bed", &s.metrics.Discharge)
	printOperationReport("List hospitals", &s.metrics.Hospitals)
	printOperationReport("My appointments", &s.metrics.MyList)

	s.printBedOccupancy()
}

func (s *Simulator) printBedOccupancy() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, body, err := s.call(ctx, http.MethodGet, "/hospitals", "", nil)
	if err != nil || status != http.StatusOK {
		return
	}
	var hospitals []struct {
		Name          string `json:"name"`
		AvailableBeds int    `json:"available_beds"`
		TotalBeds     int    `json:"total_beds"`
	}
	if json.Unmarshal(body, &hospitals) != nil {
		return
	}

	fmt.Println("Bed occupancy:")
	for _, h := range hospitals {
		fmt.Printf("  %-34s %2d/%d occupied  (%s)\n", h.Name, h.TotalBeds-h.AvailableBeds, h.TotalBeds,
			s.config.APIBaseURL+"/hospitals/"+url.PathEscape(h.Name)+"/beds")
	}
	fmt.Println()
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
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
