package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies whose cart a request targets. A signed-in user always
// wins over the guest session token.
type Owner struct {
	UserID       *uuid.UUID
	SessionToken string
}

// ForUser builds an owner for an authenticated account.
func ForUser(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

// ForSession builds an owner for a guest.
func ForSession(token string) Owner {
	return Owner{SessionToken: token}
}

// Normalize drops the session token when a user is present.
func (o Owner) Normalize() (Owner, error) {
	if o.UserID != nil && *o.UserID != uuid.Nil {
		return Owner{UserID: o.UserID}, nil
	}
	token := strings.TrimSpace(o.SessionToken)
	if token == "" {
		return Owner{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}
	return Owner{SessionToken: token}, nil
}

// IsGuest reports whether the owner is identified only by a session token.
func (o Owner) IsGuest() bool {
	return o.UserID == nil || *o.UserID == uuid.Nil
}

// SessionPtr returns the session token as a nullable column value.
func (o Owner) SessionPtr() *string {
	if !o.IsGuest() || o.SessionToken == "" {
		return nil
	}
	token := o.SessionToken
	return &token
}
