package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/api/middleware"
	cartsvc "github.com/angelmondragon/ordercore-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

type addItemRequest struct {
	SkuID    uuid.UUID `json:"sku_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// OwnerFromRequest resolves the cart owner: the signed-in user when a token was
// presented, otherwise the guest session named by the X-Cart-Session header.
func OwnerFromRequest(r *http.Request) (cartsvc.Owner, error) {
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cartsvc.Owner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cartsvc.UserOwner(userID), nil
	}
	session := strings.TrimSpace(r.Header.Get(middleware.CartSessionHeader))
	if session == "" {
		return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeValidation, middleware.CartSessionHeader+" header or bearer token required")
	}
	owner := cartsvc.GuestOwner(session)
	if err := owner.Validate(); err != nil {
		return cartsvc.Owner{}, err
	}
	return owner, nil
}
