package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cellforge/idp-controlplane/internal/analytics"
	"github.com/cellforge/idp-controlplane/internal/audit"
	"github.com/cellforge/idp-controlplane/internal/config"
	"github.com/cellforge/idp-controlplane/internal/experiment"
	"github.com/cellforge/idp-controlplane/internal/flags"
	"github.com/cellforge/idp-controlplane/internal/health"
	"github.com/cellforge/idp-controlplane/internal/registry"
	"github.com/cellforge/idp-controlplane/internal/sticky"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	products := registry.NewRegistry()
	registry.SeedBuiltins(products)

	store, err := sticky.NewCachedStore(sticky.NewMemoryStore(), 128, 0)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}

	log := logrus.New()
	log.SetOutput(logrusDiscard{})

	deps := &Deps{
		Config:      config.Default(),
		Products:    products,
		Sticky:      store,
		Health:      health.NewRegistry("aws", "gcp", "oci"),
		Breakers:    health.NewBreakerRegistry(5, 0),
		Experiments: experiment.NewRegistry(),
		Flags:       flags.NewRegistry(),
		Analytics:   analytics.NewRecorder(),
		Audit:       audit.NewMemorySink(),
		Log:         log,
	}
	_ = prometheus.NewRegistry() // metrics are optional; nil Metrics is a valid Deps state
	return NewEngine(NewHandlers(deps), nil)
}

type logrusDiscard struct{}

func (logrusDiscard) Write(p []byte) (int, error) { return len(p), nil }

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestListProducts(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodGet, "/api/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Products) == 0 {
		t.Fatal("expected at least one seeded product")
	}
}

func TestCreateServiceSchedulesAndPersists(t *testing.T) {
	engine := testEngine(t)
	body := map[string]any{
		"namespace":   "default",
		"name":        "checkout-db",
		"cell":        "payments",
		"tier":        "low",
		"environment": "prod",
		"size":        "medium",
		"storageGB":   100,
	}
	w := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Status    string `json:"status"`
		Sticky    bool   `json:"sticky"`
		Placement struct {
			Provider string `json:"provider"`
		} `json:"placement"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "created" || resp.Sticky {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Placement.Provider == "" {
		t.Fatal("expected a placed provider")
	}
}

func TestCreateServiceIsStickyOnRepeat(t *testing.T) {
	engine := testEngine(t)
	body := map[string]any{
		"namespace": "default", "name": "checkout-db", "cell": "payments",
		"tier": "low", "environment": "prod", "size": "medium", "storageGB": 100,
	}
	first := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, want 201, body=%s", first.Code, first.Body.String())
	}

	second := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body)
	if second.Code != http.StatusOK {
		t.Fatalf("second create status = %d, want 200 (sticky), body=%s", second.Code, second.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Sticky bool   `json:"sticky"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "exists" || !resp.Sticky {
		t.Fatalf("unexpected sticky response: %+v", resp)
	}
}

func TestCreateServiceRejectsForbiddenFields(t *testing.T) {
	engine := testEngine(t)
	body := map[string]any{
		"namespace": "default", "name": "checkout-db", "cell": "payments",
		"tier": "low", "environment": "prod", "provider": "aws",
	}
	w := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestCreateServiceRejectsUnknownParameter(t *testing.T) {
	engine := testEngine(t)
	body := map[string]any{
		"namespace": "default", "name": "checkout-db", "cell": "payments",
		"tier": "low", "environment": "prod", "size": "medium", "storageGB": 100,
		"totallyUnexpectedField": "x",
	}
	w := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestCreateServiceUnknownProduct(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodPost, "/api/services/does-not-exist", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetServiceNotFoundBeforeCreate(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodGet, "/api/services/mysql/default/missing-db", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetServiceReturnsConnectionSecretCoordinatesOnly(t *testing.T) {
	engine := testEngine(t)
	create := map[string]any{
		"namespace": "default", "name": "checkout-db", "cell": "payments",
		"tier": "low", "environment": "prod", "size": "medium", "storageGB": 100,
	}
	if w := doJSON(t, engine, http.MethodPost, "/api/services/mysql", create); w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, engine, http.MethodGet, "/api/services/mysql/default/checkout-db", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ConnectionSecret struct {
			Name   string `json:"name"`
			Exists bool   `json:"exists"`
		} `json:"connectionSecret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ConnectionSecret.Name == "" || !resp.ConnectionSecret.Exists {
		t.Fatalf("unexpected connectionSecret: %+v", resp.ConnectionSecret)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatal("response must never carry secret material")
	}
}

func TestFailoverServiceExcludesPreviousProvider(t *testing.T) {
	engine := testEngine(t)
	create := map[string]any{
		"namespace": "default", "name": "ledger-db", "cell": "payments",
		"tier": "low", "environment": "prod",
		"size": "large", "storageGB": 500,
	}
	created := doJSON(t, engine, http.MethodPost, "/api/services/mysql", create)
	if created.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", created.Code, created.Body.String())
	}
	var createdResp struct {
		Placement struct {
			Provider string `json:"provider"`
		} `json:"placement"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &createdResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w := doJSON(t, engine, http.MethodPost, "/api/services/mysql/default/ledger-db/failover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Status           string `json:"status"`
		PreviousProvider string `json:"previousProvider"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "failover_complete" {
		t.Fatalf("unexpected status: %+v", resp)
	}
	if resp.PreviousProvider != createdResp.Placement.Provider {
		t.Fatalf("previousProvider = %q, want %q", resp.PreviousProvider, createdResp.Placement.Provider)
	}
}

func TestFailoverServiceNotFoundWithoutExistingClaim(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodPost, "/api/services/mysql/default/never-created/failover", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestExperimentsCRUD(t *testing.T) {
	engine := testEngine(t)
	spec := map[string]any{
		"id":                "cost-experiment",
		"trafficPercentage": 0.5,
		"variantWeights":    map[string]any{"latency": 0.25, "dr": 0.25, "maturity": 0.25, "cost": 0.25},
	}
	created := doJSON(t, engine, http.MethodPost, "/api/experiments", spec)
	if created.Code != http.StatusCreated {
		t.Fatalf("create experiment: %d %s", created.Code, created.Body.String())
	}

	list := doJSON(t, engine, http.MethodGet, "/api/experiments", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list experiments: %d", list.Code)
	}

	get := doJSON(t, engine, http.MethodGet, "/api/experiments/cost-experiment", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get experiment: %d %s", get.Code, get.Body.String())
	}
	var gotSpec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &gotSpec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gotSpec.ID != "cost-experiment" {
		t.Fatalf("got experiment id %q, want cost-experiment", gotSpec.ID)
	}

	getMissing := doJSON(t, engine, http.MethodGet, "/api/experiments/does-not-exist", nil)
	if getMissing.Code != http.StatusNotFound {
		t.Fatalf("get missing experiment: %d, want 404", getMissing.Code)
	}

	del := doJSON(t, engine, http.MethodDelete, "/api/experiments/cost-experiment", nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete experiment: %d", del.Code)
	}

	delAgain := doJSON(t, engine, http.MethodDelete, "/api/experiments/cost-experiment", nil)
	if delAgain.Code != http.StatusNotFound {
		t.Fatalf("delete missing experiment: %d, want 404", delAgain.Code)
	}
}

func TestFlagsCRUD(t *testing.T) {
	engine := testEngine(t)
	put := doJSON(t, engine, http.MethodPut, "/api/flags/prefer_cost_optimization", map[string]any{"enabled": true})
	if put.Code != http.StatusOK {
		t.Fatalf("put flag: %d %s", put.Code, put.Body.String())
	}

	list := doJSON(t, engine, http.MethodGet, "/api/flags", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list flags: %d", list.Code)
	}
	var resp struct {
		Flags map[string]bool `json:"flags"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Flags["prefer_cost_optimization"] {
		t.Fatal("expected flag to be enabled")
	}

	get := doJSON(t, engine, http.MethodGet, "/api/flags/prefer_cost_optimization", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get flag: %d %s", get.Code, get.Body.String())
	}
	var flag struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &flag); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !flag.Enabled {
		t.Fatal("expected get flag to report enabled")
	}

	getMissing := doJSON(t, engine, http.MethodGet, "/api/flags/never_set", nil)
	if getMissing.Code != http.StatusNotFound {
		t.Fatalf("get unset flag: %d, want 404", getMissing.Code)
	}

	del := doJSON(t, engine, http.MethodDelete, "/api/flags/prefer_cost_optimization", nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete flag: %d", del.Code)
	}
}

func TestProviderHealthAdmin(t *testing.T) {
	engine := testEngine(t)
	put := doJSON(t, engine, http.MethodPut, "/api/providers/aws/health", map[string]any{"healthy": false})
	if put.Code != http.StatusOK {
		t.Fatalf("put health: %d %s", put.Code, put.Body.String())
	}

	get := doJSON(t, engine, http.MethodGet, "/api/providers/aws/health", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get health: %d", get.Code)
	}
	var explanation struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &explanation); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if explanation.Healthy {
		t.Fatal("expected aws marked unhealthy")
	}
}

func TestAnalyticsSnapshotReflectsPlacements(t *testing.T) {
	engine := testEngine(t)
	body := map[string]any{
		"namespace": "default", "name": "checkout-db", "cell": "payments",
		"tier": "low", "environment": "prod", "size": "medium", "storageGB": 100,
	}
	if w := doJSON(t, engine, http.MethodPost, "/api/services/mysql", body); w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, engine, http.MethodGet, "/api/analytics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		TotalPlacements int64 `json:"total_placements"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TotalPlacements != 1 {
		t.Fatalf("total_placements = %d, want 1", resp.TotalPlacements)
	}
}
