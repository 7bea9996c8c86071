// Benchmark tool for load-testing Kestrel with synthetic loan applications.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 10000
//
// This tool:
//   1. Generates synthetic applicant profiles across all credit tiers
//   2. Sends each application to Kestrel for a decision
//   3. Tallies the decision and reason-code distribution
//   4. Reports latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Application is the Kestrel API request format.
type Application struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	LoanAmount    float64 `json:"loan_amount"`
	CreditScore   int     `json:"credit_score"`
	AnnualIncome  float64 `json:"annual_income"`
	HasBankruptcy bool    `json:"has_bankruptcy"`
}

// DecisionResponse is the Kestrel API response format.
type DecisionResponse struct {
	SubmissionID string `json:"submission_id"`
	Decision     string `json:"decision"`
	ReasonCode   string `json:"reason_code"`
	Message      string `json:"message"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	mu        sync.Mutex
	decisions map[string]int64
	reasons   map[string]int64

	TotalProcessed int64
	TotalErrors    int64
	TotalRejected  int64 // non-200 responses

	ProcessingTimeMs int64
	MaxLatencyMs     int64
}

func (m *Metrics) record(resp *DecisionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[resp.Decision]++
	m.reasons[resp.ReasonCode]++
}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	count := flag.Int("count", 10000, "Number of applications to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Random seed for applicant generation")
	verbose := flag.Bool("verbose", false, "Print each decision")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - Synthetic Loan Applications       ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Count:       %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	applications := generateApplications(*count, *seed)
	fmt.Printf("✓ Generated %d synthetic applications\n", len(applications))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applications, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateApplications builds a profile mix that exercises every decision
// branch: clean excellent-tier applicants, mid-tier, thin-margin ratios,
// sub-floor scores, oversized loans, and prior bankruptcies.
func generateApplications(count int, seed int64) []Application {
	rng := rand.New(rand.NewSource(seed))
	apps := make([]Application, 0, count)

	for i := 0; i < count; i++ {
		app := Application{
			Name: fmt.Sprintf("Applicant %06d", i),
			// Unique emails keep the resubmission window out of the way.
			Email: fmt.Sprintf("bench-%06d@example.com", i),
		}

		switch rng.Intn(10) {
		case 0: // Below credit floor
			app.CreditScore = 300 + rng.Intn(300)
			app.LoanAmount = 10000 + rng.Float64()*90000
			app.AnnualIncome = 30000 + rng.Float64()*120000
		case 1: // Oversized loan
			app.CreditScore = 650 + rng.Intn(200)
			app.LoanAmount = 500001 + rng.Float64()*500000
			app.AnnualIncome = 100000 + rng.Float64()*400000
		case 2: // Prior bankruptcy
			app.CreditScore = 600 + rng.Intn(250)
			app.LoanAmount = 10000 + rng.Float64()*200000
			app.AnnualIncome = 40000 + rng.Float64()*160000
			app.HasBankruptcy = true
		case 3, 4: // Excellent tier, comfortable ratio
			app.CreditScore = 720 + rng.Intn(131)
			app.AnnualIncome = 150000 + rng.Float64()*350000
			app.LoanAmount = app.AnnualIncome * (0.10 + rng.Float64()*0.28)
		case 5: // Excellent tier, thin margin
			app.CreditScore = 720 + rng.Intn(131)
			app.AnnualIncome = 100000 + rng.Float64()*200000
			app.LoanAmount = app.AnnualIncome * (0.41 + rng.Float64()*0.08)
		case 6, 7: // Good tier
			app.CreditScore = 680 + rng.Intn(40)
			app.AnnualIncome = 60000 + rng.Float64()*140000
			app.LoanAmount = app.AnnualIncome * (0.10 + rng.Float64()*0.60)
		default: // Low tier, above the floor
			app.CreditScore = 600 + rng.Intn(80)
			app.AnnualIncome = 40000 + rng.Float64()*80000
			app.LoanAmount = app.AnnualIncome * (0.10 + rng.Float64()*0.50)
		}

		apps = append(apps, app)
	}

	return apps
}

func runBenchmark(applications []Application, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{
		decisions: make(map[string]int64),
		reasons:   make(map[string]int64),
	}

	work := make(chan Application, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, status, err := submitApplication(client, baseURL, app)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)
				for {
					max := atomic.LoadInt64(&metrics.MaxLatencyMs)
					if elapsed <= max || atomic.CompareAndSwapInt64(&metrics.MaxLatencyMs, max, elapsed) {
						break
					}
				}

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", app.Email, err)
					}
					continue
				}
				if status != http.StatusOK {
					atomic.AddInt64(&metrics.TotalRejected, 1)
					if verbose {
						fmt.Printf("REJECT: %s -> status %d\n", app.Email, status)
					}
					continue
				}

				metrics.record(result)

				if verbose {
					fmt.Printf("  %-28s | Score: %3d | Loan: $%10.2f | %-12s (%s)\n",
						app.Email, app.CreditScore, app.LoanAmount, result.Decision, result.ReasonCode)
				}
			}
		}()
	}

	for _, app := range applications {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func submitApplication(client *http.Client, baseURL string, app Application) (*DecisionResponse, int, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/applications", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var result DecisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, err
	}

	return &result, resp.StatusCode, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 RUN STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Rejected (4xx):   %d\n", m.TotalRejected)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	decided := int64(0)
	for _, n := range m.decisions {
		decided += n
	}

	fmt.Printf("\n🎯 DECISION DISTRIBUTION\n")
	for _, d := range []string{"Pre-Approved", "Conditional", "Denied"} {
		n := m.decisions[d]
		pct := float64(0)
		if decided > 0 {
			pct = 100 * float64(n) / float64(decided)
		}
		fmt.Printf("   %-14s %8d  (%.2f%%)\n", d+":", n, pct)
	}

	fmt.Printf("\n📋 REASON CODES\n")
	reasons := make([]string, 0, len(m.reasons))
	for r := range m.reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("   %-26s %8d\n", r, m.reasons[r])
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Max Latency:      %d ms\n", m.MaxLatencyMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}
