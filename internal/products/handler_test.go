package products

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/platform/httpx"
)

type stubEnqueuer struct {
	calls int
}

func (s *stubEnqueuer) EnqueueImport(ctx context.Context, xmlData []byte) (string, error) {
	s.calls++
	return "task-1", nil
}

func newTestServer(t *testing.T, enqueue Enqueuer) (*httptest.Server, *Service) {
	t.Helper()
	svc := newTestService(newMemoryRepo(), newMemorySettings(defaultConfig()))
	handler := NewHandler(slog.New(slog.DiscardHandler), svc, enqueue)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func postInvoice(t *testing.T, srv *httptest.Server) ImportDetail {
	t.Helper()
	resp, err := http.Post(srv.URL+"/imports", "application/xml", strings.NewReader(sampleInvoice))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var detail ImportDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	return detail
}

func TestHandlerCreateAndGetImport(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	detail := postInvoice(t, srv)
	require.Equal(t, "1234", detail.Import.Number)
	require.Len(t, detail.Products, 1)

	resp, err := http.Get(srv.URL + "/imports/" + detail.Import.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched ImportDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	require.Equal(t, detail.Import.ID, fetched.Import.ID)
	require.Equal(t, "K1234", fetched.Products[0].Code)
}

func TestHandlerDuplicateImportConflicts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	postInvoice(t, srv)

	resp, err := http.Post(srv.URL+"/imports", "application/xml", strings.NewReader(sampleInvoice))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerMalformedInvoice(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/imports", "application/xml", strings.NewReader("<nfeProc><unclosed"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.Equal(t, "Validation Failed", problem.Title)
	require.Equal(t, http.StatusBadRequest, problem.Status)
}

func TestHandlerProblemTitles(t *testing.T) {
	// Domain errors surface through the shared RFC7807 mapping.
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/imports/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.Equal(t, "Not Found", problem.Title)
	require.Contains(t, problem.Detail, "import not found")

	postInvoice(t, srv)
	resp, err = http.Post(srv.URL+"/imports", "application/xml", strings.NewReader(sampleInvoice))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.Equal(t, "Duplicate", problem.Title)
	require.Equal(t, http.StatusConflict, problem.Status)
}

func TestHandlerAsyncImport(t *testing.T) {
	enqueue := &stubEnqueuer{}
	srv, _ := newTestServer(t, enqueue)

	resp, err := http.Post(srv.URL+"/imports?async=1", "application/xml", strings.NewReader(sampleInvoice))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, enqueue.calls)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "task-1", body["taskId"])
}

func TestHandlerAsyncImportWithoutWorker(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/imports?async=1", "application/xml", strings.NewReader(sampleInvoice))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandlerGetImportBadID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/imports/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerPatchProduct(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	detail := postInvoice(t, srv)

	body := strings.NewReader(`{"discount": 20}`)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/imports/"+detail.Import.ID.String()+"/products/K1234", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	require.InDelta(t, 80, updated["netPrice"].(float64), 1e-9)
}

func TestHandlerPatchProductRejectsNegativeQuantity(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	detail := postInvoice(t, srv)

	body := strings.NewReader(`{"quantity": -1}`)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/imports/"+detail.Import.ID.String()+"/products/K1234", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerPatchProductUnknownCode(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	detail := postInvoice(t, srv)

	body := strings.NewReader(`{"discount": 1}`)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/imports/"+detail.Import.ID.String()+"/products/NOPE", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	payload := `{"channelAMarkup": 150, "channelBMarkup": 90, "roundingPolicy": "fifty", "hiddenCodes": ["X1"]}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/settings", strings.NewReader(payload))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	require.EqualValues(t, 1, saved.Revision)
	require.InDelta(t, 150, saved.Pricing.ChannelAMarkup, 1e-9)

	getResp, err := http.Get(srv.URL + "/settings")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var current Settings
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&current))
	require.Equal(t, saved.Revision, current.Revision)
}

func TestHandlerSettingsRejectsUnknownPolicy(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	payload := `{"channelAMarkup": 10, "channelBMarkup": 10, "roundingPolicy": "banker"}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/settings", strings.NewReader(payload))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerSummary(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	detail := postInvoice(t, srv)

	resp, err := http.Get(srv.URL + "/imports/" + detail.Import.ID.String() + "/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Equal(t, 1, summary.Totals.Count)
	require.InDelta(t, 90, summary.Totals.NetPrice, 1e-9)
}

func TestHandlerColumns(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/columns")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Columns []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			Align string `json:"align"`
		} `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Columns)
	require.Equal(t, "code", body.Columns[0].ID)
	require.Equal(t, "Código", body.Columns[0].Label)
}

func TestHandlerExportCSV(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	detail := postInvoice(t, srv)

	resp, err := http.Get(srv.URL + "/imports/" + detail.Import.ID.String() + "/export.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "K1234")
}

// cancelSensitiveRepo fails reads once the caller's context is done, the way
// a pgx pool would.
type cancelSensitiveRepo struct {
	RepositoryPort
}

func (r *cancelSensitiveRepo) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	if err := ctx.Err(); err != nil {
		return Import{}, err
	}
	return r.RepositoryPort.GetImport(ctx, id)
}

func (r *cancelSensitiveRepo) GetProducts(ctx context.Context, importID uuid.UUID) ([]nfe.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.RepositoryPort.GetProducts(ctx, importID)
}

func TestHandlerExportCSVSurvivesClientCancel(t *testing.T) {
	// The export runs under singleflight, so a canceled winner must not
	// poison the shared result.
	repo := &cancelSensitiveRepo{RepositoryPort: newMemoryRepo()}
	svc := NewService(repo, newMemorySettings(defaultConfig()), nil, nil)
	handler := NewHandler(slog.New(slog.DiscardHandler), svc, nil)
	router := chi.NewRouter()
	handler.MountRoutes(router)

	detail, err := svc.ImportInvoice(context.Background(), []byte(sampleInvoice))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/imports/"+detail.Import.ID.String()+"/export.csv", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "K1234")
}
