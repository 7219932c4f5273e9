package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client-side mirrors of the pricewatch API models. Durations arrive as
// nanosecond integers (Go's default time.Duration JSON encoding).

type itemOutcome struct {
	Label    string `json:"label"`
	Row      int    `json:"row"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

type runSummary struct {
	Started  time.Time     `json:"started"`
	Duration int64         `json:"duration"`
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Invalid  int           `json:"invalid"`
	Outcomes []itemOutcome `json:"outcomes"`
}

type statusResponse struct {
	Watching bool         `json:"watching"`
	Running  bool         `json:"running"`
	LastRun  *runSummary  `json:"last_run"`
	Recent   []runSummary `json:"recent"`
}

type trackedItem struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	Interval int64  `json:"interval"`
	Row      int    `json:"row"`
}

type itemStatus struct {
	Item        trackedItem  `json:"item"`
	LastOutcome *itemOutcome `json:"last_outcome"`
}

type itemsResponse struct {
	Count int          `json:"count"`
	Items []itemStatus `json:"items"`
	Error *errorDetail `json:"error"`
}

type runResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	apiURL := os.Getenv("PRICEWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: the status API runs open unless PRICEWATCH_AUTH_ENABLED is set.
	apiKey := os.Getenv("PRICEWATCH_API_KEY")

	s := server.NewMCPServer(
		"pricewatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	statusTool := mcp.NewTool("pricewatch_status",
		mcp.WithDescription("Report the monitor's current state: whether a refresh cycle is running, the last completed cycle with per-listing outcomes, and recent cycle totals."),
	)
	s.AddTool(statusTool, handleStatus(apiURL, apiKey))

	itemsTool := mcp.NewTool("pricewatch_items",
		mcp.WithDescription("List the tracked listings with their refresh intervals, output rows, and the most recent outcome recorded for each."),
	)
	s.AddTool(itemsTool, handleItems(apiURL, apiKey))

	runTool := mcp.NewTool("pricewatch_run",
		mcp.WithDescription("Trigger an immediate refresh cycle and wait for it to finish. Returns the cycle summary, or an error if a cycle is already in flight."),
	)
	s.AddTool(runTool, handleRun(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet sends a GET request to the pricewatch API and returns the body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error *errorDetail `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			return nil, fmt.Errorf("[%s] %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return body, nil
}

// apiPost sends a POST request to the pricewatch API and returns the body
// plus the HTTP status code (409 means a cycle is already running).
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// pollCycleDone polls the status endpoint until no cycle is running or the
// context is cancelled, then returns the final status body.
func pollCycleDone(ctx context.Context, client *http.Client, apiURL, apiKey string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/status")
			if err != nil {
				return nil, err
			}

			var status statusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse status: %w", err)
			}
			if !status.Running {
				return body, nil
			}
		}
	}
}

func handleStatus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/status")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}

		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse status: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Watching: %v\nCycle running: %v\n", status.Watching, status.Running))

		if status.LastRun == nil {
			sb.WriteString("\nNo completed cycles yet.\n")
		} else {
			sb.WriteString("\nLast cycle:\n")
			writeSummary(&sb, *status.LastRun, true)
		}

		if len(status.Recent) > 1 {
			sb.WriteString("\nRecent cycles (newest first):\n")
			for _, s := range status.Recent {
				writeSummary(&sb, s, false)
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleItems(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/items")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("items request failed: %v", err)), nil
		}

		var items itemsResponse
		if err := json.Unmarshal(body, &items); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse items: %v", err)), nil
		}
		if items.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", items.Error.Code, items.Error.Message)), nil
		}

		if items.Count == 0 {
			return mcp.NewToolResultText("No tracked listings."), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%d tracked listing(s):\n\n", items.Count))
		for _, is := range items.Items {
			it := is.Item
			sb.WriteString(fmt.Sprintf("row %d: %s\n  url: %s\n  every: %s\n",
				it.Row, it.Label, it.URL, time.Duration(it.Interval)))
			if o := is.LastOutcome; o != nil {
				line := fmt.Sprintf("  last: %s", o.Status)
				if o.Attempts > 0 {
					line += fmt.Sprintf(" (attempts: %d)", o.Attempts)
				}
				if o.Error != "" {
					line += " — " + o.Error
				}
				sb.WriteString(line + "\n")
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRun(apiURL, apiKey string) server.ToolHandlerFunc {
	// Long timeout: a full cycle over many listings with retries takes a while.
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, statusCode, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/run", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		var runResp runResponse
		if err := json.Unmarshal(body, &runResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if statusCode == http.StatusConflict || !runResp.Started {
			msg := runResp.Message
			if msg == "" {
				msg = "a refresh cycle is already running"
			}
			return mcp.NewToolResultError(msg), nil
		}

		// Wait for the cycle to finish, then report its summary.
		statusBody, err := pollCycleDone(ctx, client, apiURL, apiKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling cycle failed: %v", err)), nil
		}

		var status statusResponse
		if err := json.Unmarshal(statusBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse status: %v", err)), nil
		}
		if status.LastRun == nil {
			return mcp.NewToolResultText("Cycle finished, but no summary was recorded."), nil
		}

		var sb strings.Builder
		sb.WriteString("Cycle complete:\n")
		writeSummary(&sb, *status.LastRun, true)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// writeSummary appends one run summary; detailed adds per-listing outcomes.
func writeSummary(sb *strings.Builder, s runSummary, detailed bool) {
	sb.WriteString(fmt.Sprintf("  %s  took %s  — %d tracked, %d updated, %d failed, %d skipped, %d invalid\n",
		s.Started.Format(time.RFC3339), time.Duration(s.Duration).Round(time.Millisecond),
		s.Total, s.Updated, s.Failed, s.Skipped, s.Invalid))
	if !detailed {
		return
	}
	for _, o := range s.Outcomes {
		line := fmt.Sprintf("    row %d  %-8s %s", o.Row, o.Status, o.Label)
		if o.Error != "" {
			line += "  (" + o.Error + ")"
		}
		sb.WriteString(line + "\n")
	}
}
