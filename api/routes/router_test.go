package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dailyledger/api/controllers"
	"github.com/angelmondragon/dailyledger/internal/cutoff"
	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ledger"
	"github.com/angelmondragon/dailyledger/internal/orders"
	"github.com/angelmondragon/dailyledger/internal/sheets"
	"github.com/angelmondragon/dailyledger/pkg/config"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		Ledger: config.LedgerConfig{
			Tenants:       map[string]string{"lilotri": "sheet-1"},
			PricesRange:   "Prices",
			UsersRange:    "Users",
			OrdersRange:   "Orders",
			DateLayout:    "02/01/2006",
			DefaultCutoff: "20:00",
			CollateLang:   "en",
		},
		Cart: config.CartConfig{Granularity: 50, OrderMeasure: "gm"},
	}
}

func newTestRouter(t *testing.T, readiness map[string]controllers.Pinger) (http.Handler, *sheets.MemoryStore) {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})

	store := sheets.NewMemoryStore()
	store.Seed("sheet-1", "Prices", grid.Grid{
		{"Display Name", "", "", "Apple", "Banana"},
		{"Item Code", "", "", "A", "B"},
		{"English Name", "", "", "Apple", "Banana"},
		{"Price Measure", "", "", "kg", "kg"},
		{"Today's price", "", "", "100", "50"},
		{"Minimum order", "", "", "", "200g"},
		{"", "02/03/2025", "20:00", "100", "50"},
	})
	store.Seed("sheet-1", "Users", grid.Grid{
		{"Name", "ID", "Phone"},
		{"Asha", "u1", "+91 900"},
	})
	store.Seed("sheet-1", "Orders", grid.Grid{append(grid.Row{}, ledger.Schema...)})

	ist := time.FixedZone("IST", 5*3600+1800)
	policy, err := cutoff.NewPolicy(ist, cfg.Ledger.DateLayout, cfg.Ledger.DefaultCutoff)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	reg := prometheus.NewRegistry()
	svc, err := orders.NewService(orders.Params{
		Store:   store,
		Ledger:  cfg.Ledger,
		Cart:    cfg.Cart,
		Policy:  policy,
		Clock:   cutoff.ClockFunc(func() time.Time { return time.Date(2025, 3, 2, 18, 0, 0, 0, ist) }),
		Metrics: metrics.NewLedgerMetrics(reg),
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return NewRouter(cfg, logg, readiness, nil, metricsHandler, svc), store
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{"db": stubPinger{}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{
		"db":    stubPinger{},
		"redis": stubPinger{err: errors.New("refused")},
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"down"`) {
		t.Fatalf("expected failing check in body, got %s", resp.Body.String())
	}
}

func TestUnknownTenant(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/elsewhere/cart/u1", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestOrderFlowThroughRouter(t *testing.T) {
	router, store := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/lilotri/cart/u1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("cart: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var cartBody struct {
		Data struct {
			State           string `json:"state"`
			CheckoutEnabled bool   `json:"checkoutEnabled"`
			Rows            []any  `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &cartBody); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cartBody.Data.State != "open" || len(cartBody.Data.Rows) != 2 || cartBody.Data.CheckoutEnabled {
		t.Fatalf("unexpected cart %+v", cartBody.Data)
	}

	resp = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lilotri/order/u1", strings.NewReader(`{"items":{"A":250,"B":0}}`))
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("order: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	grids, err := store.ReadGrids(context.Background(), "sheet-1", []string{"Orders"})
	if err != nil {
		t.Fatalf("read orders: %v", err)
	}
	rows := grids["Orders"]
	if len(rows) != 2 || rows[1].Cell(0) != "1" || rows[1].Cell(ledger.HeaderColumns) != "250gm@100/kg" {
		t.Fatalf("unexpected ledger %v", rows)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/lilotri/orders/u1", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"orderNumber":"1"`) {
		t.Fatalf("history: unexpected %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(resp.Body.String(), `ledger_submissions_total{outcome="appended",tenant="lilotri"} 1`) {
		t.Fatalf("expected submission metric, got %s", resp.Body.String())
	}
}
