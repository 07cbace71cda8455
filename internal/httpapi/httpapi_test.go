package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tokolite/backend/internal/cache"
	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/notify"
	"tokolite/backend/internal/service"
	"tokolite/backend/internal/store/memory"
)

func newTestAPI() *API {
	repo := memory.New()
	svc := service.New(repo, notify.NewCenter(), cache.NoopDashboardCache{}, 5, 5)
	auth := newTestAuthManager()
	return New(svc, auth, "http://127.0.0.1:3000")
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func ownerToken(t *testing.T, api *API) string {
	t.Helper()
	resp, err := api.auth.Login(loginRequest("owner", "rahasia-kuat"))
	if err != nil {
		t.Fatalf("owner login failed: %v", err)
	}
	return resp.AccessToken
}

func demoToken(t *testing.T, api *API) string {
	t.Helper()
	resp, err := api.auth.DemoLogin()
	if err != nil {
		t.Fatalf("demo login failed: %v", err)
	}
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI()
	rec := doRequest(t, api.Handler(), http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d, want 200", rec.Code)
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/products", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d, want 401", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/products", "invalid-token", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token = %d, want 401", rec.Code)
	}
}

func TestMutatingRequestsRequireCSRFToken(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, "", domain.ProductCreateRequest{
		Name: "Beras", SKU: "SKU-1", Price: 1000, InitialStock: 1,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing csrf = %d, want 403", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/products", token, api.generateCSRFToken(), domain.ProductCreateRequest{
		Name: "Beras", SKU: "SKU-1", Price: 1000, InitialStock: 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid csrf = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
}

func TestLoginEndpointIssuesUsableToken(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", loginRequest("owner", "rahasia-kuat"))
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/products", resp.AccessToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token rejected = %d, want 200", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()

	var last int
	for i := 0; i < 7; i++ {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", loginRequest("owner", "salah"))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)
	csrf := api.generateCSRFToken()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name: "Kopi Bubuk", SKU: "SKU-KOPI", Price: 24000, InitialStock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response failed: %v", err)
	}
	id := created.Product.ID

	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/products/%s/stock", id), token, csrf, domain.StockAdjustRequest{
		Amount: -3, Type: domain.MutationOut, Note: "spoiled",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust = %d (%s)", rec.Code, rec.Body.String())
	}
	var adjusted struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &adjusted); err != nil {
		t.Fatalf("decode adjust response failed: %v", err)
	}
	if adjusted.Product.Stock != 7 {
		t.Fatalf("stock after adjust = %d, want 7", adjusted.Product.Stock)
	}

	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/v1/products/%s", id), token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/products/%s", id), token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("read after delete = %d, want 404", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/mutations", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mutations = %d", rec.Code)
	}
	var ledger struct {
		Mutations []domain.StockMutation `json:"mutations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ledger); err != nil {
		t.Fatalf("decode mutations failed: %v", err)
	}
	if len(ledger.Mutations) != 3 {
		t.Fatalf("expected NEW+OUT+DELETE entries, got %d", len(ledger.Mutations))
	}
}

func TestCheckoutOverHTTP(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)
	csrf := api.generateCSRFToken()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name: "Gula", SKU: "SKU-GULA", Price: 10000, InitialStock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response failed: %v", err)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/transactions", token, csrf, domain.CommitSaleRequest{
		PaymentMethod: domain.PaymentCash,
		TaxRate:       10,
		Items: []domain.CartItem{
			{ID: created.Product.ID, Name: created.Product.Name, SKU: created.Product.SKU, Price: created.Product.Price, Quantity: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout = %d (%s)", rec.Code, rec.Body.String())
	}
	var committed struct {
		Transaction domain.Transaction `json:"transaction"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &committed); err != nil {
		t.Fatalf("decode checkout response failed: %v", err)
	}
	if committed.Transaction.Total != 22000 {
		t.Fatalf("total = %v, want 22000", committed.Transaction.Total)
	}
}

func TestDemoBlockedFromAdminEndpoints(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := demoToken(t, api)
	csrf := api.generateCSRFToken()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/admin/factory-reset", token, csrf, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("factory reset for demo = %d, want 403", rec.Code)
	}
}

func TestDemoQuotaSurfacesAsTooManyRequests(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := demoToken(t, api)
	csrf := api.generateCSRFToken()

	for i := 0; i < 5; i++ {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
			Name: fmt.Sprintf("Demo %d", i), SKU: fmt.Sprintf("SKU-D%d", i), Price: 1000, InitialStock: 1,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("demo create %d = %d (%s)", i, rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name: "Demo 6", SKU: "SKU-D6", Price: 1000, InitialStock: 1,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th demo action = %d, want 429", rec.Code)
	}
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)
	csrf := api.generateCSRFToken()

	custom := domain.StoreSettings{
		StoreName:      "Toko Uji",
		WhatsappNumber: "628000111222",
		Address:        "Jl. Uji 9",
		CashierName:    "Budi",
		TaxRate:        11,
	}
	rec := doRequest(t, handler, http.MethodPut, "/api/v1/settings", token, csrf, custom)
	if rec.Code != http.StatusOK {
		t.Fatalf("update settings = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/settings", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read settings = %d", rec.Code)
	}
	var got struct {
		Settings domain.StoreSettings `json:"settings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode settings failed: %v", err)
	}
	if got.Settings != custom {
		t.Fatalf("settings = %+v, want %+v", got.Settings, custom)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/settings/reset", token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset settings = %d", rec.Code)
	}
}

func TestBackupExportImportOverHTTP(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)
	csrf := api.generateCSRFToken()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name: "Ekspor", SKU: "SKU-EXP", Price: 5000, InitialStock: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/backup/export", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	var doc domain.BackupDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode export failed: %v", err)
	}
	if doc.Version != "1.0" || len(doc.Products) != 1 {
		t.Fatalf("unexpected export document: version=%q products=%d", doc.Version, len(doc.Products))
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/backup/import", token, csrf, doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/backup/import", token, csrf, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed import = %d, want 400", rec.Code)
	}
}

func TestStreamRejectsUnknownCollection(t *testing.T) {
	api := newTestAPI()
	handler := api.Handler()
	token := ownerToken(t, api)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/stream/unknown", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown stream = %d, want 400", rec.Code)
	}
}
