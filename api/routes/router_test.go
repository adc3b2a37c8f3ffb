package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	pkgauth "github.com/angelmondragon/ordercore-backend/pkg/auth"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type stubCarts struct {
	cart.Service
	owners []cart.Owner
}

func (s *stubCarts) GetCart(_ context.Context, owner cart.Owner) (*cart.View, error) {
	s.owners = append(s.owners, owner)
	return &cart.View{ID: uuid.New(), Items: []cart.LineView{}}, nil
}

type stubCheckout struct {
	checkout.Service
	calls int
}

func (s *stubCheckout) PlaceOrder(_ context.Context, _ cart.Owner, input checkout.PlaceOrderInput) (*models.Order, error) {
	s.calls++
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260105-ABCDEF",
		Status:      enums.OrderStatusPending,
		Email:       input.Email,
	}, nil
}

type stubOrders struct {
	orders.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "ordercore", ExpirationMinutes: 15},
		Orders: config.OrdersConfig{
			AuditDefaultLimit: 20,
			AuditMaxLimit:     100,
		},
		Webhooks: config.WebhooksConfig{PaymentSecret: "whsec"},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *stubCarts, *stubCheckout) {
	t.Helper()
	carts := &stubCarts{}
	checkoutSvc := &stubCheckout{}
	router := NewRouter(Dependencies{
		Config:           testConfig(),
		Logger:           logger.Nop(),
		DB:               stubPinger{},
		Redis:            stubPinger{},
		IdempotencyStore: &memoryStore{values: map[string]string{}},
		Carts:            carts,
		Checkout:         checkoutSvc,
		Orders:           stubOrders{},
		MetricsHandler:   http.NotFoundHandler(),
	})
	return router, carts, checkoutSvc
}

func bearer(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/"+uuid.NewString()+"/audit", nil)
	resp := serve(router, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/bulk-cancel", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleCustomer))
	req.Header.Set("Idempotency-Key", "k1")
	resp := serve(router, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestCustomerCancelRequiresToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/cancel", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "k1")
	resp := serve(router, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCartRoutesResolveGuestAndUser(t *testing.T) {
	router, carts, _ := newTestRouter(t)

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Cart-Session", "guest-session-1")
	if resp := serve(router, req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for guest, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleCustomer))
	if resp := serve(router, req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for user, got %d", resp.Code)
	}

	if len(carts.owners) != 2 {
		t.Fatalf("expected 2 cart lookups, got %d", len(carts.owners))
	}
	if carts.owners[0].SessionID != "guest-session-1" {
		t.Fatalf("expected guest owner, got %+v", carts.owners[0])
	}
	if carts.owners[1].UserID == nil {
		t.Fatalf("expected user owner, got %+v", carts.owners[1])
	}
}

func TestCheckoutReplaysIdempotentRequest(t *testing.T) {
	router, _, checkoutSvc := newTestRouter(t)
	body := `{"email":"buyer@example.com","shipping":{"name":"Ana Ruiz","line1":"1 Main St","city":"Austin","region":"TX","postal_code":"78701"}}`

	send := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Cart-Session", "guest-session-2")
		req.Header.Set("Idempotency-Key", "checkout-1")
		return serve(router, req)
	}

	first := send(body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := send(body)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical replay body")
	}
	if checkoutSvc.calls != 1 {
		t.Fatalf("expected one checkout, got %d", checkoutSvc.calls)
	}

	conflict := send(strings.Replace(body, "buyer@", "other@", 1))
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}

func TestPaymentWebhookRequiresSignature(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{"id":"evt_1","type":"payment.succeeded"}`))
	resp := serve(router, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
