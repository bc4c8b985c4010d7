package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hsds-validator/internal/config"
	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

const serviceSchema = `
fields:
  - name: name
    constraints:
      required: true
  - name: email
    format: email
`

const serviceCSV = "name,email\nA,a@b.com\nB,bad\nC,c@d.com\n"

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		Validation: config.ValidationConfig{
			MaxUploadSize: 1 << 20,
			FetchTimeout:  5 * time.Second,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...ServerOption) *Server {
	t.Helper()
	catalog := resources.NewCatalog(resources.WithFS(fstest.MapFS{
		"service.yaml": {Data: []byte(serviceSchema)},
	}))
	svc := core.NewService(catalog, core.WithLimiter(core.NewValidationLimiter(2, time.Second)))
	s := NewServer(svc, cfg, opts...)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.History)
	assert.Equal(t, 2, body.Limiter.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealth_HistoryDown(t *testing.T) {
	s := newTestServer(t, testConfig(), WithHistoryPinger(fakePinger{err: errors.New("down")}))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[healthResponse](t, rec).History)
}

func TestMetricsMounted(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) })
	s := newTestServer(t, testConfig(), WithMetricsHandler(h))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestListResources(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/resources", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []resources.Type{resources.Service}, decode[resourceList](t, rec).Types)
}

func TestSchema(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/resources/service/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"email"`)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/resources/widget/schema", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SCH001", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/resources/organization/schema", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "SCH002", decode[ErrorResponse](t, rec).Code)
}

func TestValidate_CSVBody(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/validate/service", strings.NewReader(serviceCSV))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("User-Agent", "tests")

	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[validateResponse](t, rec)
	assert.False(t, body.Valid)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 3, body.Errors[0].Row)
	assert.Equal(t, 2, body.Errors[0].Col)
	assert.Equal(t, core.OutcomeInvalid, body.Run.Outcome)
	assert.Equal(t, "request body", body.Run.Source)
	assert.Equal(t, "tests", body.Run.UserAgent)
}

func TestValidate_Multipart(t *testing.T) {
	s := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "services.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("name,email\nA,a@b.com\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/validate/service", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[validateResponse](t, rec)
	assert.True(t, body.Valid)
	assert.Empty(t, body.Errors)
	assert.Equal(t, "services.csv", body.Run.Source)
}

func TestValidate_MultipartWithoutFile(t *testing.T) {
	s := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/validate/service", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE003", decode[ErrorResponse](t, rec).Code)
}

func TestValidate_JSONRecords(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := `[{"name":"A","email":"a@b.com"},{"name":"B","email":"bad"},{"email":"c@d.com"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/validate/service?headersRow=5", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[validateResponse](t, rec)
	assert.False(t, resp.Valid)
	// a fixed sequence stops after the first failing attempt
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, resp.Errors[0].Row)
	assert.Equal(t, 0, resp.Run.HeadersRow)
}

func TestValidate_JSONRows(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := `[["name","email"],["A","a@b.com"],["B",null]]`
	req := httptest.NewRequest(http.MethodPost, "/api/validate/service", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[validateResponse](t, rec).Valid)
}

func TestValidate_BadRequests(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"unknown type", "/api/validate/widget", "text/csv", serviceCSV, http.StatusNotFound, "SCH001"},
		{"empty body", "/api/validate/service", "text/csv", "", http.StatusBadRequest, "FILE003"},
		{"not an array", "/api/validate/service", "application/json", `{"name":"A"}`, http.StatusBadRequest, "FILE003"},
		{"bad headersRow", "/api/validate/service?headersRow=x", "text/csv", serviceCSV, http.StatusBadRequest, "FILE003"},
		{"negative headersRow", "/api/validate/service?headersRow=-1", "text/csv", serviceCSV, http.StatusBadRequest, "FILE003"},
		{"bad delimiter", "/api/validate/service?delimiter=ab", "text/csv", serviceCSV, http.StatusBadRequest, "FILE003"},
		{"bad url", "/api/validate/service?url=ftp://x/y.csv", "", "", http.StatusBadRequest, "FILE003"},
		{"missing column", "/api/validate/service", "text/csv", "email\na@b.com\n", http.StatusUnprocessableEntity, "VAL002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := do(t, s, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestValidate_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.MaxUploadSize = 16
	s := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/validate/service", strings.NewReader(serviceCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(t, s, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
}

func TestValidate_RemoteURL(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("title line\n" + serviceCSV))
	}))
	defer remote.Close()

	s := newTestServer(t, testConfig(), WithHTTPClient(remote.Client()))
	req := httptest.NewRequest(http.MethodPost, "/api/validate/service?headersRow=auto&url="+remote.URL+"/s.csv", nil)
	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[validateResponse](t, rec)
	assert.Equal(t, 2, resp.Run.HeadersRow)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 4, resp.Errors[0].Row)
}

func TestValidate_RemoteURLGuards(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(serviceCSV + strings.Repeat("D,d@e.com\n", 100)))
	}))
	defer remote.Close()

	small := testConfig()
	small.Validation.MaxUploadSize = 64

	tests := []struct {
		name       string
		cfg        *config.Config
		opts       []ServerOption
		wantStatus int
		wantCode   string
		wantHits   int32
	}{
		{"loopback refused by default client", testConfig(), nil, http.StatusBadRequest, "FILE004", 0},
		{"body over the upload limit", small, []ServerOption{WithHTTPClient(remote.Client())}, http.StatusRequestEntityTooLarge, "FILE001", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits.Store(0)
			s := newTestServer(t, tt.cfg, tt.opts...)
			req := httptest.NewRequest(http.MethodPost, "/api/validate/service?headersRow=1&url="+remote.URL+"/s.csv", nil)
			rec := do(t, s, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestValidate_RemoteURLAllowPrivate(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(serviceCSV))
	}))
	defer remote.Close()

	cfg := testConfig()
	cfg.Validation.FetchAllowPrivate = true
	s := newTestServer(t, cfg)
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/validate/service?headersRow=1&url="+remote.URL, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[validateResponse](t, rec).Errors, 1)
}

func TestDetectHeader(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/detect-header/service", strings.NewReader("report,\n,\n"+serviceCSV))
	req.Header.Set("Content-Type", "text/csv")

	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]int{"headersRow": 3}, decode[map[string]int](t, rec))
}

func TestHistory_Disabled(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/service", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "REQ004", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/service?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/resources", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(t, s, req).Code)

	// health stays open for liveness checks
	assert.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ValidateLimit: 2}
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(0, 0)
	rl := &rateLimiter{visitors: map[string]*visitor{}, rate: 1, window: time.Minute, now: func() time.Time { return now }}

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("a"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{validator.ErrUnsupportedResourceType, http.StatusNotFound},
		{core.ErrTooManyValidations, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&validator.ScannerError{Message: "x", Err: errors.New("fetch failed")}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{";", ';', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"|", '|', false},
		{`"`, 0, true},
		{"ab", 0, true},
	}
	for _, tt := range tests {
		got, err := delimiter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
