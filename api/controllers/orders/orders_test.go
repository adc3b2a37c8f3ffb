package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/api/middleware"
	"github.com/angelmondragon/ordercore-backend/internal/audit"
	internalorders "github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

type stubOrders struct {
	internalorders.Service
	result  *internalorders.Result
	bulk    *internalorders.BulkResult
	err     error
	lastReq internalorders.Request
	lastIDs []uuid.UUID
}

func (s *stubOrders) Cancel(_ context.Context, orderID uuid.UUID, actor internalorders.Actor, reason string) (*internalorders.Result, error) {
	s.lastReq = internalorders.Request{OrderID: orderID, Action: enums.AuditActionCancelled, Actor: actor, Reason: reason}
	return s.result, s.err
}

func (s *stubOrders) Transition(_ context.Context, req internalorders.Request) (*internalorders.Result, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubOrders) BulkCancel(_ context.Context, ids []uuid.UUID, actor internalorders.Actor, reason string) (*internalorders.BulkResult, error) {
	s.lastIDs = ids
	s.lastReq = internalorders.Request{Actor: actor, Reason: reason}
	return s.bulk, s.err
}

type stubAudit struct {
	page      *audit.Page
	lastLimit int
}

func (s *stubAudit) ListRecent(_ context.Context, _ uuid.UUID, limit int, _ string) (*audit.Page, error) {
	s.lastLimit = limit
	return s.page, nil
}

func authed(req *http.Request, role enums.ActorRole) (*http.Request, uuid.UUID) {
	userID := uuid.New()
	return req.WithContext(middleware.WithIdentity(req.Context(), userID.String(), string(role), "someone@example.com")), userID
}

func withOrderParam(req *http.Request, orderID uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return body.Status, body.Message
}

func TestCancelOrderBuildsCustomerActor(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrders{result: &internalorders.Result{
		Order:  &models.Order{ID: orderID, Status: enums.OrderStatusCancelled},
		Status: pkgerrors.ResultSuccess,
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"  changed my mind "}`))
	req, userID := authed(req, enums.ActorRoleCustomer)
	req = withOrderParam(req, orderID)
	resp := httptest.NewRecorder()
	CancelOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastReq.Actor.Source != enums.AuditSourceCustomer || *svc.lastReq.Actor.UserID != userID {
		t.Fatalf("unexpected actor %+v", svc.lastReq.Actor)
	}
	if svc.lastReq.Reason != "changed my mind" {
		t.Fatalf("expected trimmed reason got %q", svc.lastReq.Reason)
	}
}

func TestCancelOrderRequiresIdentity(t *testing.T) {
	orderID := uuid.New()
	req := withOrderParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), orderID)
	resp := httptest.NewRecorder()
	CancelOrder(&stubOrders{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminTransitionParsesActionAndReportsWarning(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrders{result: &internalorders.Result{
		Order:   &models.Order{ID: orderID, Status: enums.OrderStatusShipped},
		Status:  pkgerrors.ResultWarning,
		Warning: internalorders.WarningEmailNotSent,
	}}

	body := `{"action":"shipped","tracking_number":"1Z999","carrier":"UPS","send_email":true}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req, _ = authed(req, enums.ActorRoleAdmin)
	req = withOrderParam(req, orderID)
	resp := httptest.NewRecorder()
	AdminTransition(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastReq.Action != enums.AuditActionShipped || svc.lastReq.TrackingNumber != "1Z999" || !svc.lastReq.SendEmail {
		t.Fatalf("unexpected request %+v", svc.lastReq)
	}
	if svc.lastReq.Actor.Source != enums.AuditSourceAdmin {
		t.Fatalf("expected admin actor got %s", svc.lastReq.Actor.Source)
	}
	status, message := decodeEnvelope(t, resp)
	if status != "warning" || message != internalorders.WarningEmailNotSent {
		t.Fatalf("unexpected envelope status=%s message=%s", status, message)
	}
}

func TestAdminTransitionRejectsUnknownAction(t *testing.T) {
	svc := &stubOrders{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"teleport"}`))
	req, _ = authed(req, enums.ActorRoleAdmin)
	req = withOrderParam(req, uuid.New())
	resp := httptest.NewRecorder()
	AdminTransition(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminTransitionMapsInvalidTransition(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot ship a pending order")}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"SHIPPED","tracking_number":"x"}`))
	req, _ = authed(req, enums.ActorRoleAdmin)
	req = withOrderParam(req, uuid.New())
	resp := httptest.NewRecorder()
	AdminTransition(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	status, message := decodeEnvelope(t, resp)
	if status != "conflict" || message != "cannot ship a pending order" {
		t.Fatalf("unexpected envelope status=%s message=%s", status, message)
	}
}

func TestAdminBulkCancelReportsSkips(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	svc := &stubOrders{bulk: &internalorders.BulkResult{
		Cancelled: []uuid.UUID{a},
		Skipped:   []internalorders.BulkSkip{{OrderID: b, Code: pkgerrors.CodeConflict, Message: "order is already cancelled"}},
		Status:    pkgerrors.ResultWarning,
		Warning:   "1 order skipped",
	}}

	body := `{"order_ids":["` + a.String() + `","` + b.String() + `"],"reason":"fraud"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req, _ = authed(req, enums.ActorRoleAdmin)
	resp := httptest.NewRecorder()
	AdminBulkCancel(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.lastIDs) != 2 || svc.lastReq.Reason != "fraud" {
		t.Fatalf("unexpected call ids=%v reason=%q", svc.lastIDs, svc.lastReq.Reason)
	}
	var body2 struct {
		Status string `json:"status"`
		Data   struct {
			Cancelled []uuid.UUID `json:"cancelled"`
			Skipped   []struct {
				Code string `json:"code"`
			} `json:"skipped"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body2.Status != "warning" || len(body2.Data.Cancelled) != 1 || body2.Data.Skipped[0].Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("unexpected body %+v", body2)
	}
}

func TestAdminOrderAuditClampsLimit(t *testing.T) {
	reader := &stubAudit{page: &audit.Page{
		Entries:    []models.OrderAudit{{ID: uuid.New(), Action: enums.AuditActionCreated, Source: enums.AuditSourceCustomer}},
		NextCursor: "next",
	}}
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	req = withOrderParam(req, uuid.New())
	resp := httptest.NewRecorder()
	AdminOrderAudit(reader, 20, 100, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range limit got %d", resp.Code)
	}

	req = withOrderParam(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	resp = httptest.NewRecorder()
	AdminOrderAudit(reader, 20, 100, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if reader.lastLimit != 20 {
		t.Fatalf("expected default limit 20 got %d", reader.lastLimit)
	}
	var body struct {
		Data AuditPage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Entries) != 1 || body.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", body.Data)
	}
}
