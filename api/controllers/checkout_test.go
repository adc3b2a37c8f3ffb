package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/api/middleware"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

type stubCheckout struct {
	order     *models.Order
	err       error
	lastOwner cart.Owner
	lastInput checkout.PlaceOrderInput
}

func (s *stubCheckout) PlaceOrder(_ context.Context, owner cart.Owner, input checkout.PlaceOrderInput) (*models.Order, error) {
	s.lastOwner = owner
	s.lastInput = input
	return s.order, s.err
}

func (s *stubCheckout) CreateManualOrder(context.Context, orders.Actor, checkout.ManualOrderInput) (*models.Order, error) {
	return nil, errors.New("not used")
}

const checkoutBody = `{"email":"buyer@example.com","shipping":{"name":"Ana","line1":"1 Main St","city":"Austin","region":"TX","postal_code":"78701"},"payment_session_ref":"cs_1","shipping_cents":500}`

func TestCheckoutPlacesOrderForGuest(t *testing.T) {
	svc := &stubCheckout{order: &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "ORD-20260105-ABCDEF",
		Status:           enums.OrderStatusPending,
		StockReservation: enums.StockReservationHeld,
		TotalCents:       3500,
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set(middleware.CartSessionHeader, "sess-9")
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastOwner.SessionID != "sess-9" {
		t.Fatalf("expected guest owner, got %+v", svc.lastOwner)
	}
	if svc.lastInput.PaymentSessionRef != "cs_1" || svc.lastInput.ShippingCents != 500 {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
	var body struct {
		Data struct {
			OrderNumber string `json:"order_number"`
			TotalCents  int64  `json:"total_cents"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.OrderNumber != "ORD-20260105-ABCDEF" || body.Data.TotalCents != 3500 {
		t.Fatalf("unexpected body %+v", body.Data)
	}
}

func TestCheckoutRejectsMissingAddress(t *testing.T) {
	svc := &stubCheckout{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"email":"buyer@example.com","shipping":{}}`))
	req.Header.Set(middleware.CartSessionHeader, "sess-9")
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.lastOwner.SessionID != "" {
		t.Fatalf("service should not be called")
	}
}

func TestCheckoutMapsOutOfStock(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeSkuInactive, "sku retired")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set(middleware.CartSessionHeader, "sess-9")
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

type failingPinger struct{ err error }

func (f failingPinger) Ping(context.Context) error { return f.err }

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, failingPinger{}, failingPinger{})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, failingPinger{}, failingPinger{err: errors.New("down")})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
