package newsletter

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const MsgAlreadySubscribed = "already subscribed"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Subscription struct {
	Email string `json:"email"`
}

// Service records newsletter sign-ups.
type Service struct {
	tx       txRunner
	outbox   outbox.Emitter
	validate *validator.Validate
}

func NewService(tx txRunner, emitter outbox.Emitter) (*Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &Service{tx: tx, outbox: emitter, validate: validator.New()}, nil
}

// Subscribe stores the address once and emits newsletter.subscribed in the same transaction.
func (s *Service) Subscribe(ctx context.Context, email string) (*Subscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&models.NewsletterSubscriber{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check subscriber")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, MsgAlreadySubscribed)
		}

		subscriber := &models.NewsletterSubscriber{Email: email}
		if err := tx.WithContext(ctx).Create(subscriber).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, MsgAlreadySubscribed)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscriber")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNewsletterSubscribed,
			AggregateType: enums.AggregateNewsletter,
			AggregateID:   subscriber.ID,
			Data: payloads.NewsletterSubscribedEvent{
				SubscriberID: subscriber.ID,
				Email:        subscriber.Email,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit newsletter event")
	}
	return &Subscription{Email: email}, nil
}
