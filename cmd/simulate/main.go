// simulate hammers the public booking endpoint with concurrent requests for
// the same time slot and reports how many succeeded. With the row-lock
// transaction in place, exactly one request per slot must win and the rest
// must get 409.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
)

type SimConfig struct {
	APIBaseURL   string
	BusinessSlug string
	ServiceID    string
	Date         string // YYYY-MM-DD, defaults to tomorrow
	Workers      int
	Slots        int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	_ = godotenv.Load()

	cfg := loadConfig()
	if cfg.BusinessSlug == "" || cfg.ServiceID == "" {
		log.Fatal("SIM_BUSINESS_SLUG and SIM_SERVICE_ID are required")
	}

	log.Printf("config: base_url=%s slug=%s slots=%d workers_per_slot=%d",
		cfg.APIBaseURL, cfg.BusinessSlug, cfg.Slots, cfg.Workers)

	client := &http.Client{Timeout: 10 * time.Second}
	gofakeit.Seed(time.Now().UnixNano())

	var metrics OperationMetrics
	badSlots := 0

	for slot := 0; slot < cfg.Slots; slot++ {
		startsAt := slotTime(cfg.Date, slot)
		wins := hammerSlot(client, cfg, &metrics, startsAt)
		if wins != 1 {
			badSlots++
			log.Printf("DOUBLE BOOKING: slot %s got %d successful bookings", startsAt, wins)
		}
	}

	printReport(cfg, &metrics, badSlots)
	if badSlots > 0 {
		os.Exit(1)
	}
}

// hammerSlot fires all workers at one slot simultaneously and returns how
// many got a 201.
func hammerSlot(client *http.Client, cfg SimConfig, metrics *OperationMetrics, startsAt string) int64 {
	var wins int64
	var wg sync.WaitGroup
	release := make(chan struct{})

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-release

			body, _ := json.Marshal(map[string]string{
				"service_id":   cfg.ServiceID,
				"starts_at":    startsAt,
				"client_name":  gofakeit.Name(),
				"client_phone": gofakeit.Numerify("5255########"),
			})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			url := fmt.Sprintf("%s/api/public/%s/book", cfg.APIBaseURL, cfg.BusinessSlug)
			req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			start := time.Now()
			resp, err := client.Do(req)
			latency := time.Since(start)

			if err != nil {
				metrics.Record(latency, 0)
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			metrics.Record(latency, resp.StatusCode)
			if resp.StatusCode == http.StatusCreated {
				atomic.AddInt64(&wins, 1)
			}
		}(w)
	}

	close(release)
	wg.Wait()
	return atomic.LoadInt64(&wins)
}

// slotTime lays slots out on the 30-minute grid starting at 10:00 local.
func slotTime(date string, slot int) string {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		log.Fatalf("invalid SIM_DATE: %v", err)
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC).
		Add(time.Duration(slot) * 30 * time.Minute)
	return t.Format(time.RFC3339)
}

func printReport(cfg SimConfig, metrics *OperationMetrics, badSlots int) {
	total := atomic.LoadInt64(&metrics.Total)
	success := atomic.LoadInt64(&metrics.Success)
	conflict := atomic.LoadInt64(&metrics.Conflict)
	errs := atomic.LoadInt64(&metrics.Error)
	avg, p50, p95 := metrics.Stats()

	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("Slots: %d  Workers per slot: %d\n", cfg.Slots, cfg.Workers)
	fmt.Printf("Requests: %d  Success: %d  Conflict: %d  Error: %d\n", total, success, conflict, errs)
	fmt.Printf("Latency: avg=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	if badSlots == 0 {
		fmt.Println("Result: OK, one winner per slot")
	} else {
		fmt.Printf("Result: FAILED, %d slots with double bookings\n", badSlots)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		BusinessSlug: os.Getenv("SIM_BUSINESS_SLUG"),
		ServiceID:    os.Getenv("SIM_SERVICE_ID"),
		Date:         getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		Workers:      getInt("SIM_WORKERS", 20),
		Slots:        getInt("SIM_SLOTS", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
