package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dailyledger/api/middleware"
	"github.com/angelmondragon/dailyledger/internal/cart"
	"github.com/angelmondragon/dailyledger/internal/catalog"
	"github.com/angelmondragon/dailyledger/internal/cutoff"
	"github.com/angelmondragon/dailyledger/internal/directory"
	internalorders "github.com/angelmondragon/dailyledger/internal/orders"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
)

type stubOrdersService struct {
	buildCart func(ctx context.Context, tenant, userID string) (*cart.Model, error)
	submit    func(ctx context.Context, tenant, userID string, input internalorders.SubmitInput) (internalorders.Receipt, error)
	feedback  func(ctx context.Context, tenant, userID, orderNumber string, input internalorders.FeedbackInput) error
	list      func(ctx context.Context, tenant, userID string) (internalorders.History, error)
}

func (s *stubOrdersService) GetCartData(ctx context.Context, tenant, userID string) (cart.Data, error) {
	panic("not implemented")
}

func (s *stubOrdersService) BuildCart(ctx context.Context, tenant, userID string) (*cart.Model, error) {
	return s.buildCart(ctx, tenant, userID)
}

func (s *stubOrdersService) SubmitOrder(ctx context.Context, tenant, userID string, input internalorders.SubmitInput) (internalorders.Receipt, error) {
	return s.submit(ctx, tenant, userID, input)
}

func (s *stubOrdersService) RecordFeedback(ctx context.Context, tenant, userID, orderNumber string, input internalorders.FeedbackInput) error {
	return s.feedback(ctx, tenant, userID, orderNumber, input)
}

func (s *stubOrdersService) ListOrders(ctx context.Context, tenant, userID string) (internalorders.History, error) {
	return s.list(ctx, tenant, userID)
}

func newRequest(method, target string, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithTenant(ctx, "lilotri")
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v (%s)", err, body)
	}
	return payload.Data
}

func TestCartReturnsView(t *testing.T) {
	svc := &stubOrdersService{
		buildCart: func(_ context.Context, tenant, userID string) (*cart.Model, error) {
			if tenant != "lilotri" || userID != "u1" {
				t.Fatalf("unexpected tenant/user %s/%s", tenant, userID)
			}
			return cart.NewModel(cart.Data{
				Date:    "02/03/2025",
				User:    directory.User{ID: "u1", Name: "Asha"},
				Entries: []catalog.Entry{
					{Item: catalog.Item{Code: "A", DisplayName: "Apple", Measure: "kg"}, Price: "100"},
				},
				Decision: cutoff.Decision{State: cutoff.StateOpen, Cutoff: "20:00", Display: "8:00pm"},
			}, cart.Options{})
		},
	}

	resp := httptest.NewRecorder()
	Cart(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/lilotri/cart/u1", "", map[string]string{"userId": "u1"}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	data := decodeData(t, resp.Body.Bytes())
	if data["state"] != "open" || data["cutoffDisplay"] != "8:00pm" {
		t.Fatalf("unexpected view %v", data)
	}
	rows, _ := data["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %v", data["rows"])
	}
}

func TestSubmitCreatesOrder(t *testing.T) {
	var got internalorders.SubmitInput
	svc := &stubOrdersService{
		submit: func(_ context.Context, _, _ string, input internalorders.SubmitInput) (internalorders.Receipt, error) {
			got = input
			return internalorders.Receipt{OrderNumber: "5", Value: 25, Items: map[string]string{"A": "250gm@100/kg"}}, nil
		},
	}

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/api/v1/lilotri/order/u1", `{"items":{"A":250}}`, map[string]string{"userId": "u1"})
	Submit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Items["A"] != 250 {
		t.Fatalf("unexpected input %+v", got)
	}
	data := decodeData(t, resp.Body.Bytes())
	if data["orderNumber"] != "5" {
		t.Fatalf("unexpected receipt %v", data)
	}
}

func TestSubmitUpdateReturnsOK(t *testing.T) {
	svc := &stubOrdersService{
		submit: func(context.Context, string, string, internalorders.SubmitInput) (internalorders.Receipt, error) {
			return internalorders.Receipt{OrderNumber: "5", Updated: true}, nil
		},
	}
	resp := httptest.NewRecorder()
	Submit(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", `{"items":{"A":100}}`, map[string]string{"userId": "u1"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestSubmitRejectsBadBody(t *testing.T) {
	svc := &stubOrdersService{
		submit: func(context.Context, string, string, internalorders.SubmitInput) (internalorders.Receipt, error) {
			t.Fatal("service must not be called")
			return internalorders.Receipt{}, nil
		},
	}
	bodies := []string{
		`{"items":{"A":"lots"}}`,
		`{}`,
		`{"items":{},"extra":1}`,
		`{"items":{"A":5000000}}`,
		`{"items":{"A":10000000000000000000}}`,
	}
	for _, body := range bodies {
		resp := httptest.NewRecorder()
		Submit(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", body, map[string]string{"userId": "u1"}))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestSubmitRefusalMapsTo422(t *testing.T) {
	svc := &stubOrdersService{
		submit: func(context.Context, string, string, internalorders.SubmitInput) (internalorders.Receipt, error) {
			return internalorders.Receipt{}, pkgerrors.New(pkgerrors.CodeRefused, "ordering closed at 8:00pm")
		},
	}
	resp := httptest.NewRecorder()
	Submit(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", `{"items":{"A":100}}`, map[string]string{"userId": "u1"}))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "ordering closed at 8:00pm") {
		t.Fatalf("expected reason in body, got %s", resp.Body.String())
	}
}

func TestHistory(t *testing.T) {
	svc := &stubOrdersService{
		list: func(context.Context, string, string) (internalorders.History, error) {
			return internalorders.History{
				Today: &internalorders.OrderView{OrderNumber: "5"},
				Past:  []internalorders.OrderView{{OrderNumber: "4", Paid: true}},
			}, nil
		},
	}
	resp := httptest.NewRecorder()
	History(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/", "", map[string]string{"userId": "u2"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	data := decodeData(t, resp.Body.Bytes())
	past, _ := data["past"].([]any)
	if len(past) != 1 || data["today"] == nil {
		t.Fatalf("unexpected history %v", data)
	}
}

func TestFeedback(t *testing.T) {
	var gotNumber string
	var gotInput internalorders.FeedbackInput
	svc := &stubOrdersService{
		feedback: func(_ context.Context, _, _, orderNumber string, input internalorders.FeedbackInput) error {
			gotNumber, gotInput = orderNumber, input
			return nil
		},
	}
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", `{"rating":4,"feedbackText":"  crisp  "}`, map[string]string{"userId": "u2", "orderNumber": "4"})
	Feedback(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotNumber != "4" || gotInput.Rating != 4 || gotInput.FeedbackText != "crisp" {
		t.Fatalf("unexpected call %s %+v", gotNumber, gotInput)
	}
}

func TestFeedbackValidation(t *testing.T) {
	svc := &stubOrdersService{
		feedback: func(context.Context, string, string, string, internalorders.FeedbackInput) error {
			t.Fatal("service must not be called")
			return nil
		},
	}
	resp := httptest.NewRecorder()
	Feedback(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", `{"rating":9}`, map[string]string{"userId": "u2", "orderNumber": "4"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	Feedback(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", `{"rating":3}`, map[string]string{"userId": "u2"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing order number, got %d", resp.Code)
	}
}

func TestNotFoundOrderFeedback(t *testing.T) {
	svc := &stubOrdersService{
		feedback: func(context.Context, string, string, string, internalorders.FeedbackInput) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order number 9 not found for user u2")
		},
	}
	resp := httptest.NewRecorder()
	Feedback(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/", `{"rating":3}`, map[string]string{"userId": "u2", "orderNumber": "9"}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
