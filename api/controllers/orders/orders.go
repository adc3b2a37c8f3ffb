package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/api/responses"
	"github.com/angelmondragon/ordercore-backend/api/validators"
	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	internalorders "github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

type auditReader interface {
	ListRecent(ctx context.Context, orderID uuid.UUID, limit int, cursor string) (*audit.Page, error)
}

// CancelOrder lets a customer cancel their own pending order.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Cancel(r.Context(), orderID, actor, validators.SanitizeText(payload.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(w, http.StatusOK, result.Status, result.Warning, newTransitionResponse(result))
	}
}

// AdminTransition applies any transition named by the request body.
func AdminTransition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseAuditAction(strings.ToUpper(strings.TrimSpace(payload.Action)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		result, err := svc.Transition(r.Context(), internalorders.Request{
			OrderID:        orderID,
			Action:         action,
			Actor:          actor,
			Reason:         validators.SanitizeText(payload.Reason, 500),
			TrackingNumber: validators.SanitizeString(payload.TrackingNumber, 120),
			Carrier:        validators.SanitizeString(payload.Carrier, 120),
			Address:        payload.Address,
			SendEmail:      payload.SendEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(w, http.StatusOK, result.Status, result.Warning, newTransitionResponse(result))
	}
}

// AdminBulkCancel cancels many orders in one transaction. Orders that cannot be
// cancelled are reported as skipped and the envelope status becomes a warning.
func AdminBulkCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload bulkCancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BulkCancel(r.Context(), payload.OrderIDs, actor, validators.SanitizeText(payload.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(w, http.StatusOK, result.Status, result.Warning, result)
	}
}

func AdminSoftDelete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SoftDelete(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOutcome(w, http.StatusOK, result.Status, result.Warning, newTransitionResponse(result))
	}
}

// AdminCreateOrder records an order entered by hand.
func AdminCreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload manualOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines := make([]checkout.ManualLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkout.ManualLine{SkuID: line.SkuID, Quantity: line.Quantity})
		}
		order, err := svc.CreateManualOrder(r.Context(), actor, checkout.ManualOrderInput{
			UserID:        payload.UserID,
			Email:         payload.Email,
			Shipping:      payload.Shipping,
			Lines:         lines,
			ShippingCents: payload.ShippingCents,
			TaxCents:      payload.TaxCents,
			Note:          validators.SanitizeText(payload.Note, 500),
			Notify:        payload.Notify,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, NewOrderResponse(order))
	}
}

// AdminOrderAudit pages through an order's history, newest first.
func AdminOrderAudit(reader auditReader, defaultLimit, maxLimit int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseLimit(r, defaultLimit, maxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.ParseCursor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := reader.ListRecent(r.Context(), orderID, limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := AuditPage{Entries: make([]AuditEntry, 0, len(page.Entries)), NextCursor: page.NextCursor}
		for i := range page.Entries {
			out.Entries = append(out.Entries, *newAuditEntry(&page.Entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
