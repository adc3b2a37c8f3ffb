package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/api/middleware"
	internalorders "github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type transitionRequest struct {
	Action         string         `json:"action" validate:"required"`
	Reason         string         `json:"reason" validate:"max=500"`
	TrackingNumber string         `json:"tracking_number" validate:"max=120"`
	Carrier        string         `json:"carrier" validate:"max=120"`
	Address        *types.Address `json:"address"`
	SendEmail      bool           `json:"send_email"`
}

type bulkCancelRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	Reason   string      `json:"reason" validate:"max=500"`
}

type manualLineRequest struct {
	SkuID    uuid.UUID `json:"sku_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

type manualOrderRequest struct {
	UserID        *uuid.UUID          `json:"user_id"`
	Email         string              `json:"email" validate:"required,email"`
	Shipping      types.Address       `json:"shipping"`
	Lines         []manualLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingCents int64               `json:"shipping_cents" validate:"min=0"`
	TaxCents      int64               `json:"tax_cents" validate:"min=0"`
	Note          string              `json:"note" validate:"max=500"`
	Notify        bool                `json:"notify"`
}

// actorFromRequest maps the authenticated identity onto an order actor.
func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return internalorders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	label := strings.TrimSpace(middleware.EmailFromContext(r.Context()))
	switch enums.ActorRole(middleware.RoleFromContext(r.Context())) {
	case enums.ActorRoleAdmin:
		return internalorders.AdminActor(userID, label), nil
	case enums.ActorRoleCustomer:
		return internalorders.CustomerActor(userID, label), nil
	}
	return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
}
