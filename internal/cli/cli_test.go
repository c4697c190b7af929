package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dennisdiepolder/monti/acw/internal/api"
	"github.com/dennisdiepolder/monti/acw/internal/auth"
	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/dennisdiepolder/monti/acw/internal/ingestion"
	"github.com/dennisdiepolder/monti/acw/internal/storage"
	"github.com/rs/zerolog"
)

const scenarioLog = `agent_id,agent_joined_at,selected_service,finished_at,final_status
A,2024-01-15 09:00:00,billing,2024-01-15 09:05:00,completed
A,2024-01-15 09:15:00,billing,2024-01-15 09:20:00,completed
A,2024-01-15 10:00:00,billing,2024-01-15 10:05:00,completed
`

// execute runs the root command with a clean environment
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("RECORD_SOURCE", config.SourceCSV)
	t.Setenv("DYNAMO_MODE", "none")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeTempLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func TestReportCommandTable(t *testing.T) {
	path := writeTempLog(t, scenarioLog)

	out, err := execute(t, "report", "--input", path, "--source", "csv", "--format", "table")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, rule and one row, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "SERVICE") {
		t.Errorf("expected header row, got %q", lines[0])
	}
	if fields := strings.Fields(lines[2]); len(fields) != 2 || fields[0] != "billing" || fields[1] != "600" {
		t.Errorf("expected billing 600, got %q", lines[2])
	}
}

func TestReportCommandJSON(t *testing.T) {
	path := writeTempLog(t, scenarioLog)

	out, err := execute(t, "report", "--input", path, "--source", "csv", "--format", "json")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	var averages map[string]int64
	if err := json.Unmarshal([]byte(out), &averages); err != nil {
		t.Fatalf("failed to parse output %q: %v", out, err)
	}
	if len(averages) != 1 || averages["billing"] != 600 {
		t.Errorf("expected {billing: 600}, got %v", averages)
	}
}

func TestReportCommandErrors(t *testing.T) {
	path := writeTempLog(t, scenarioLog)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"report", "--input", filepath.Join(t.TempDir(), "nope.csv"), "--source", "csv", "--format", "table"}},
		{"unknown format", []string{"report", "--input", path, "--source", "csv", "--format", "xml"}},
		{"unknown source", []string{"report", "--input", path, "--source", "postgres", "--format", "table"}},
		{"dynamodb disabled", []string{"report", "--source", "dynamodb", "--format", "table"}},
		{"unexpected argument", []string{"report", "extra", "--format", "table"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerateThenReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.csv")

	_, err := execute(t, "generate", "--agents", "10", "--days", "2", "--seed", "3",
		"--start", "2024-02-01", "--out", path, "--dynamodb=false")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open generated log: %v", err)
	}
	defer f.Close()

	records, err := ingestion.ReadCSV(f)
	if err != nil {
		t.Fatalf("failed to read generated log: %v", err)
	}
	if len(records) < 10*2*2 {
		t.Errorf("expected at least 40 records, got %d", len(records))
	}

	out, err := execute(t, "report", "--input", path, "--source", "csv", "--format", "json")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	var averages map[string]int64
	if err := json.Unmarshal([]byte(out), &averages); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(averages) == 0 {
		t.Error("expected averages for generated log")
	}
}

func TestGenerateToStdout(t *testing.T) {
	out, err := execute(t, "generate", "--agents", "2", "--days", "1", "--seed", "1",
		"--start", "2024-02-01", "--out", "-", "--dynamodb=false")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	first, _, _ := strings.Cut(out, "\n")
	if first != strings.Join(ingestion.Header, ",") {
		t.Errorf("expected CSV header, got %q", first)
	}
}

func TestGenerateInvalidStart(t *testing.T) {
	if _, err := execute(t, "generate", "--start", "01/02/2024", "--out", "-", "--dynamodb=false"); err == nil {
		t.Error("expected error for invalid start date")
	}
}

func TestNewRecordSource(t *testing.T) {
	cfg := &config.Config{RecordSource: config.SourceCSV, InputPath: "default.csv", DynamoMode: "none"}

	source, name, err := newRecordSource(context.Background(), cfg, sourceOptions{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != config.SourceCSV {
		t.Errorf("expected csv source, got %s", name)
	}
	if _, ok := source.(*ingestion.CSVSource); !ok {
		t.Errorf("expected *ingestion.CSVSource, got %T", source)
	}

	_, _, err = newRecordSource(context.Background(), cfg, sourceOptions{Kind: config.SourceDynamoDB}, zerolog.Nop())
	if !errors.Is(err, storage.ErrDynamoDisabled) {
		t.Errorf("expected ErrDynamoDisabled, got %v", err)
	}
}

func newTestRouter(skipAuth bool) (http.Handler, *api.ReportHandler) {
	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		SkipAuth:       skipAuth,
	}
	records, _ := ingestion.ReadCSV(strings.NewReader(scenarioLog))
	reports := api.NewReportHandler(ingestion.StaticSource(records), "test", nil, 1<<20, zerolog.Nop())
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	return newRouter(cfg, auth.NewAuthenticator(cfg, zerolog.Nop()), reports, ws, zerolog.Nop()), reports
}

func TestRouterPublicRoutes(t *testing.T) {
	router, _ := newTestRouter(false)

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/reports/latest", http.StatusUnauthorized},
		{"/ws", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestRouterReportFlow(t *testing.T) {
	router, reports := newTestRouter(true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any report, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(scenarioLog)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on upload, got %d: %s", rec.Code, rec.Body.String())
	}
	uploaded := reports.Current().RunID

	// the dev user is an admin, so refresh is allowed
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on refresh, got %d", rec.Code)
	}
	if reports.Current().RunID == uploaded {
		t.Error("expected refresh to replace the latest report")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/latest/slots?date=2024-01-15", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on slots, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"agentId":"A"`) {
		t.Errorf("expected slot for agent A, got %s", rec.Body.String())
	}
}
