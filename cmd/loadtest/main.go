package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const idempotencyHeader = "Idempotency-Key"

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreateDelete loadMode = "create-delete"
)

type config struct {
	baseURL     string
	total       int
	concurrency int
	timeout     time.Duration
	mode        loadMode
	productID   string
	quantity    int
	unitPrice   string
	phoneTag    string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Total           int64            `json:"total"`
	Success         int64            `json:"success"`
	Failed          int64            `json:"failed"`
	ErrorRate       float64          `json:"error_rate"`
	RPS             float64          `json:"rps"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	LatencyMs       latencySummary   `json:"latency_ms"`
}

type collector struct {
	mu        sync.Mutex
	statuses  map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{statuses: make(map[string]int64)}
}

func (c *collector) record(status int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[fmt.Sprintf("%d", status)]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue, timeoutValue string

	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "base URL of the order API")
	flag.IntVar(&cfg.total, "total", 200, "total scenarios to execute")
	flag.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-delete")
	flag.StringVar(&cfg.productID, "product", "product-load", "product id used in order lines")
	flag.IntVar(&cfg.quantity, "qty", 1, "quantity per order line")
	flag.StringVar(&cfg.unitPrice, "unit-price", "3.50", "unit price per line")
	flag.StringVar(&cfg.phoneTag, "phone-tag", "load", "customer phone prefix")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	switch loadMode(strings.TrimSpace(modeValue)) {
	case modeCreate:
		cfg.mode = modeCreate
	case modeCreateDelete:
		cfg.mode = modeCreateDelete
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", modeValue)
	}

	if cfg.total <= 0 {
		return cfg, errors.New("total must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(startedAt)
	result := buildReport(col, startedAt, duration, int64(cfg.total), failures)
	printReport(result, cfg)

	if result.Failed > 0 {
		os.Exit(1)
	}
}

func runScenario(client *http.Client, cfg config, index int, runID string, col *collector) error {
	body := map[string]any{
		"customer_name":  fmt.Sprintf("Load Tester %d", index),
		"customer_phone": fmt.Sprintf("%s-%s-%d", cfg.phoneTag, runID, index),
		"payment_method": "cash",
		"total_amount":   totalAmount(cfg.unitPrice, cfg.quantity),
		"items": []map[string]any{
			{
				"product_id": cfg.productID,
				"quantity":   cfg.quantity,
				"unit_price": cfg.unitPrice,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, cfg.baseURL+"/orders/create", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, fmt.Sprintf("lt-create-%s-%d", runID, index))

	resp, err := client.Do(req)
	if err != nil {
		col.record(0, time.Since(start))
		return err
	}
	var created struct {
		OrderID string `json:"order_id"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&created)
	_ = resp.Body.Close()
	col.record(resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create returned status %d", resp.StatusCode)
	}
	if decodeErr != nil || created.OrderID == "" {
		return errors.New("create response returned empty order id")
	}
	if cfg.mode == modeCreate {
		return nil
	}

	start = time.Now()
	delReq, err := http.NewRequest(http.MethodDelete, cfg.baseURL+"/orders/"+created.OrderID, nil)
	if err != nil {
		return err
	}
	delResp, err := client.Do(delReq)
	if err != nil {
		col.record(0, time.Since(start))
		return err
	}
	_ = delResp.Body.Close()
	col.record(delResp.StatusCode, time.Since(start))

	if delResp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete returned status %d", delResp.StatusCode)
	}
	return nil
}

// totalAmount считает сумму заказа как qty * price в центах,
// избегая плавающей точки.
func totalAmount(unitPrice string, qty int) string {
	parts := strings.SplitN(unitPrice, ".", 2)
	whole, _ := strconv.Atoi(parts[0])
	cents := whole * 100
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) > 2 {
			frac = frac[:2]
		}
		fracVal, _ := strconv.Atoi(frac)
		cents += fracVal
	}
	total := cents * qty
	return fmt.Sprintf("%d.%02d", total/100, total%100)
}

func buildReport(col *collector, startedAt time.Time, duration time.Duration, total, failures int64) report {
	col.mu.Lock()
	defer col.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Total:           total,
		Failed:          failures,
		Success:         total - failures,
		StatusCounts:    make(map[string]int64, len(col.statuses)),
		LatencyMs:       buildLatencySummary(col.latencies),
	}
	for status, count := range col.statuses {
		result.StatusCounts[status] = count
	}
	if total > 0 {
		result.ErrorRate = float64(failures) / float64(total)
	}
	if duration > 0 {
		result.RPS = float64(total) / duration.Seconds()
	}
	return result
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, result.Total, result.Success, result.Failed, result.ErrorRate)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min, result.LatencyMs.Avg, result.LatencyMs.P50,
		result.LatencyMs.P95, result.LatencyMs.P99, result.LatencyMs.Max)

	statuses := make([]string, 0, len(result.StatusCounts))
	for status := range result.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("status %s: %d\n", status, result.StatusCounts[status])
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
