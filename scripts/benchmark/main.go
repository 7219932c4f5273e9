// Benchmark drives repeated refresh cycles through a running pricewatch
// instance and reports how long each cycle takes and what it did.
//
// Usage:
//
//	go run ./scripts/benchmark -api-url http://localhost:8080 -cycles 5
//
// The target instance decides which items are actually due, so the first
// cycle typically updates rows and later ones mostly skip; both numbers
// are part of the result.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "Pricewatch API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	cycles = flag.Int("cycles", 3, "Number of refresh cycles to trigger")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// pollInterval is how often /status is checked while a cycle runs.
const pollInterval = 2 * time.Second

// cycleTimeout bounds one triggered cycle end to end.
const cycleTimeout = 10 * time.Minute

// --- Response types (mirrors models package) ---

type runSummary struct {
	Started  time.Time `json:"started"`
	Duration int64     `json:"duration"` // nanoseconds
	Total    int       `json:"total"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Invalid  int       `json:"invalid"`
}

type statusResponse struct {
	Running bool        `json:"running"`
	LastRun *runSummary `json:"last_run"`
}

type runResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type cycleResult struct {
	Cycle      int    `json:"cycle"`
	DurationMs int64  `json:"duration_ms"`
	Total      int    `json:"total"`
	Updated    int    `json:"updated"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Invalid    int    `json:"invalid"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type benchmarkReport struct {
	Timestamp     string        `json:"timestamp"`
	APIURL        string        `json:"api_url"`
	Cycles        int           `json:"cycles"`
	Results       []cycleResult `json:"results"`
	AvgDurationMs float64       `json:"avg_duration_ms"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Pricewatch Benchmark ===")
	fmt.Printf("API URL:  %s\n", *apiURL)
	fmt.Printf("Cycles:   %d\n", *cycles)
	fmt.Printf("Output:   %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure pricewatch is running in watch mode\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		APIURL:    *apiURL,
		Cycles:    *cycles,
	}

	for i := 1; i <= *cycles; i++ {
		fmt.Printf("Cycle %d/%d ... ", i, *cycles)
		cr := benchmarkCycle(i)
		if cr.Success {
			fmt.Printf("OK  %dms  updated=%d skipped=%d failed=%d\n",
				cr.DurationMs, cr.Updated, cr.Skipped, cr.Failed)
		} else {
			fmt.Printf("FAILED: %s\n", cr.Error)
		}
		report.Results = append(report.Results, cr)
	}

	report.AvgDurationMs = avgDuration(report.Results)

	fmt.Println()
	printTable(report.Results, report.AvgDurationMs)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// benchmarkCycle triggers one refresh cycle and waits for its summary.
func benchmarkCycle(n int) cycleResult {
	cr := cycleResult{Cycle: n}

	if err := triggerRun(); err != nil {
		cr.Error = err.Error()
		return cr
	}

	summary, err := awaitCompletion()
	if err != nil {
		cr.Error = err.Error()
		return cr
	}

	cr.Success = true
	cr.DurationMs = summary.Duration / int64(time.Millisecond)
	cr.Total = summary.Total
	cr.Updated = summary.Updated
	cr.Failed = summary.Failed
	cr.Skipped = summary.Skipped
	cr.Invalid = summary.Invalid
	return cr
}

func triggerRun() error {
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/run", nil)
	if err != nil {
		return err
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rr runResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode run response: %w", err)
	}
	if !rr.Started {
		return fmt.Errorf("cycle not started: %s", rr.Message)
	}
	return nil
}

// awaitCompletion polls /status until the triggered cycle finishes and
// returns its summary.
func awaitCompletion() (*runSummary, error) {
	deadline := time.Now().Add(cycleTimeout)

	// Give the cycle a moment to flip the running flag.
	time.Sleep(pollInterval)

	for time.Now().Before(deadline) {
		st, err := fetchStatus()
		if err != nil {
			return nil, err
		}
		if !st.Running {
			if st.LastRun == nil {
				return nil, errors.New("cycle finished but no summary was recorded")
			}
			return st.LastRun, nil
		}
		time.Sleep(pollInterval)
	}
	return nil, fmt.Errorf("cycle still running after %s", cycleTimeout)
}

func fetchStatus() (*statusResponse, error) {
	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &st, nil
}

func avgDuration(results []cycleResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if r.Success {
			sum += float64(r.DurationMs)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func printTable(results []cycleResult, avgMs float64) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Cycle\tDuration\tUpdated\tFailed\tSkipped\tInvalid\n")
	fmt.Fprintf(w, "─────\t────────\t───────\t──────\t───────\t───────\n")

	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(w, "%d\tFAILED\t-\t-\t-\t-\n", r.Cycle)
			continue
		}
		fmt.Fprintf(w, "%d\t%dms\t%d\t%d\t%d\t%d\n",
			r.Cycle, r.DurationMs, r.Updated, r.Failed, r.Skipped, r.Invalid)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 70))
	if avgMs > 0 {
		fmt.Printf("Average cycle: %.0fms\n", avgMs)
	}
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
