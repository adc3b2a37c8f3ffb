package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

const maxSessionIDLength = 128

// Owner identifies a cart: a registered user or an anonymous session, never both.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserOwner builds an owner for a registered user.
func UserOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// GuestOwner builds an owner for an anonymous session.
func GuestOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

// Validate enforces that exactly one identity is set.
func (o Owner) Validate() error {
	session := strings.TrimSpace(o.SessionID)
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	switch {
	case hasUser && session != "":
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be either a user or a session, not both")
	case !hasUser && session == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	case len(session) > maxSessionIDLength:
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is too long")
	}
	return nil
}

// IsGuest reports whether the owner is an anonymous session.
func (o Owner) IsGuest() bool {
	return o.UserID == nil || *o.UserID == uuid.Nil
}

func (o Owner) logFields() map[string]any {
	if o.IsGuest() {
		return map[string]any{"cart_owner": "guest"}
	}
	return map[string]any{"cart_owner": "user", "user_id": o.UserID.String()}
}
