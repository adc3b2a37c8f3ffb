package controllers

import (
	"net/http"

	cartcontrollers "github.com/angelmondragon/ordercore-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/ordercore-backend/api/controllers/orders"
	"github.com/angelmondragon/ordercore-backend/api/responses"
	"github.com/angelmondragon/ordercore-backend/api/validators"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

type checkoutRequest struct {
	Email             string        `json:"email" validate:"required,email"`
	Shipping          types.Address `json:"shipping"`
	PaymentSessionRef string        `json:"payment_session_ref" validate:"max=255"`
	ShippingCents     int64         `json:"shipping_cents" validate:"min=0"`
	TaxCents          int64         `json:"tax_cents" validate:"min=0"`
}

// Checkout converts the caller's cart into a pending order. The stock the cart
// already holds moves to the order unchanged.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		owner, err := cartcontrollers.OwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.PlaceOrder(r.Context(), owner, checkout.PlaceOrderInput{
			Email:             payload.Email,
			Shipping:          payload.Shipping,
			PaymentSessionRef: validators.SanitizeString(payload.PaymentSessionRef, 255),
			ShippingCents:     payload.ShippingCents,
			TaxCents:          payload.TaxCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ordercontrollers.NewOrderResponse(order))
	}
}
