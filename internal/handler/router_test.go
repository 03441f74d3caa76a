package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/config"
	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/handler"
	"github.com/ledgerline/importd/internal/infra/memory"
	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/infra/resilience"
	"github.com/ledgerline/importd/internal/service"
)

const sampleCSV = `date,name,amount,type,account
2024-03-15,Coffee Shop,-4.50,regular,Checking
2024-03-16,Paycheck,2500.00,income,Checking
`

func newTestRouter() http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := &config.Config{
		BatchSize:            20,
		BatchDelay:           200 * time.Millisecond,
		MaxRetries:           3,
		RetryDelay:           time.Millisecond,
		DedupeThresh:         60,
		JobTTL:               time.Hour,
		ActiveJobGrace:       10 * time.Minute,
		MaxConcurrentImports: 2,
	}

	txs := memory.NewTransactionStore()
	jobs := service.NewJobStore(memory.NewKV(), cfg.JobTTL, cfg.ActiveJobGrace, logger)
	svc := service.NewImportService(
		jobs,
		service.NewAccountResolver(memory.NewAccountStore(), logger),
		service.NewProcessor(service.NewDeduper(txs, logger), memory.NewPublisher(), logger, metrics),
		resilience.NewBulkhead(cfg.MaxConcurrentImports),
		cfg,
		logger,
		metrics,
	)
	return handler.NewRouter(svc, metrics, logger)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSubmitImport(t *testing.T) {
	router := newTestRouter()

	body := `{"fileName":"march.csv","csvContent":` + jsonString(sampleCSV) + `}`
	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var handle domain.JobHandle
	if err := json.Unmarshal(rec.Body.Bytes(), &handle); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if handle.JobID == "" || handle.FileName != "march.csv" || handle.Status != domain.JobQueued {
		t.Errorf("unexpected handle: %+v", handle)
	}
}

func TestSubmitImport_RequiresUser(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSubmitImport_ValidationError(t *testing.T) {
	router := newTestRouter()

	body := `{"fileName":"report.pdf","csvContent":"a,b"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetImportJob(t *testing.T) {
	router := newTestRouter()

	body := `{"fileName":"march.csv","csvContent":` + jsonString(sampleCSV) + `}`
	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var handle domain.JobHandle
	if err := json.Unmarshal(rec.Body.Bytes(), &handle); err != nil {
		t.Fatalf("decoding handle: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/import/"+handle.JobID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var job domain.ImportJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decoding job: %v", err)
	}
	if job.JobID != handle.JobID || job.UserID != "u1" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestGetImportJob_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/import/does-not-exist", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestActiveImports(t *testing.T) {
	router := newTestRouter()

	body := `{"fileName":"march.csv","csvContent":` + jsonString(sampleCSV) + `}`
	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	req = httptest.NewRequest(http.MethodGet, "/v1/import/active", nil)
	req.Header.Set("X-User-ID", "u1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Jobs  []domain.ImportJob `json:"jobs"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || len(resp.Jobs) != 1 {
		t.Errorf("expected 1 active job, got %+v", resp)
	}
}

func TestActiveImports_RequiresUser(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/import/active", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestImportMetricsSnapshot(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/import/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot observability.ImportSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
