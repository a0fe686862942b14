package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const invalidResetMessage = "reset link is invalid or expired"

// RequestPasswordReset emails a one-time link to the account owning
// req.Email. An unknown address succeeds silently.
func (s *service) RequestPasswordReset(ctx context.Context, req RequestPasswordResetRequest) error {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	user, err := s.users.FindByLogin(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !strings.EqualFold(user.Email, email) {
		return nil
	}

	token, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue reset token")
	}
	expiresAt := s.now().UTC().Add(s.resets.TTL())

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserPasswordReset,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Data: payloads.PasswordResetRequestedEvent{
				UserID:    user.ID,
				Username:  user.Username,
				Email:     user.Email,
				ResetURL:  s.resetLink(token),
				ExpiresAt: expiresAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit password reset")
		}
		return nil
	})
}

// ConfirmPasswordReset redeems the token and stores the new password. The
// token is spent even when the new password is then rejected by storage.
func (s *service) ConfirmPasswordReset(ctx context.Context, req ConfirmPasswordResetRequest) error {
	if err := security.ValidatePassword(req.NewPassword); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	userID, err := s.resets.Consume(ctx, req.Token)
	if errors.Is(err, session.ErrInvalidResetToken) {
		return pkgerrors.New(pkgerrors.CodeValidation, invalidResetMessage)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem reset token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeValidation, invalidResetMessage)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	hash, err := s.passwords.Hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return s.storePassword(ctx, user, hash)
}

func (s *service) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.resetURL, "?") {
		sep = "&"
	}
	return s.resetURL + sep + "token=" + url.QueryEscape(token)
}
