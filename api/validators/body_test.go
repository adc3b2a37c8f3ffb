package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

type sampleBody struct {
	SkuID    string `json:"sku_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"min=1,max=99"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku_id":"nope","quantity":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected quantity detail %q", details["quantity"])
	}
	if _, ok := details["sku_id"]; !ok {
		t.Fatalf("expected sku_id detail")
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku_id":"5f0c6f5e-8f5d-4a43-9d87-6a1f0e2b8c11","quantity":1,"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	if _, err := ParseUUIDParam(req, "orderId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseUUIDParam(req, "skuId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing param, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingData(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"trailing": `{"sku_id":"5f0c6f5e-8f5d-4a43-9d87-6a1f0e2b8c11","quantity":1} {"quantity":2}`,
		"too big":  `{"sku_id":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body sampleBody
		if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParseLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	if limit, err := ParseLimit(req, 20, 100); err != nil || limit != 25 {
		t.Fatalf("expected 25, got %d (%v)", limit, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if limit, err := ParseLimit(req, 20, 100); err != nil || limit != 20 {
		t.Fatalf("expected default 20, got %d (%v)", limit, err)
	}
	for _, raw := range []string{"0", "101", "ten"} {
		req = httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)
		if _, err := ParseLimit(req, 20, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("limit=%s: expected validation error, got %v", raw, err)
		}
	}
}
