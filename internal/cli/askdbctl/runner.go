package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("askdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "AskDB API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	driver := fs.String("driver", "", "Database driver for reconfigure (sqlite3 or duckdb)")
	limit := fs.Int("limit", 0, "Maximum number of sessions to list")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var payload any
	switch command {
	case "health":
		method, path = http.MethodGet, "/api/health"
	case "ready":
		method, path = http.MethodGet, "/api/ready"
	case "chat":
		message := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if message == "" {
			_, _ = fmt.Fprintln(stderr, "chat requires a message")
			return 2
		}
		method, path = http.MethodPost, "/api/chat"
		payload = map[string]string{"message": message}
	case "sessions":
		method, path = http.MethodGet, "/api/sessions"
		if *limit > 0 {
			path = fmt.Sprintf("/api/sessions?limit=%d", *limit)
		}
	case "session":
		sessionID := strings.TrimSpace(fs.Arg(1))
		if sessionID == "" {
			_, _ = fmt.Fprintln(stderr, "session requires a session id")
			return 2
		}
		method, path = http.MethodGet, "/api/sessions/"+sessionID
	case "reconfigure":
		dsn := strings.TrimSpace(fs.Arg(1))
		if dsn == "" {
			_, _ = fmt.Fprintln(stderr, "reconfigure requires a database path or DSN")
			return 2
		}
		method, path = http.MethodPost, "/api/reconfigure"
		payload = map[string]string{"driver": strings.TrimSpace(*driver), "dsn": dsn}
	case "archive-run":
		method, path = http.MethodPost, "/api/archive/run"
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health             GET /api/health")
	_, _ = fmt.Fprintln(w, "  ready              GET /api/ready")
	_, _ = fmt.Fprintln(w, "  chat <message>     POST /api/chat")
	_, _ = fmt.Fprintln(w, "  sessions           GET /api/sessions")
	_, _ = fmt.Fprintln(w, "  session <id>       GET /api/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  reconfigure <dsn>  POST /api/reconfigure")
	_, _ = fmt.Fprintln(w, "  archive-run        POST /api/archive/run")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
