package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a copy bound to tx; a nil tx keeps the current handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// matching selects users whose username or email equals any of the given
// values, case-insensitively.
func matching(username, email string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), strings.ToLower(email))
	}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByLogin accepts either a username or an email.
func (r *Repository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	var user models.User
	if err := r.DB(ctx).Scopes(matching(login, login)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Taken reports which of username and email already belong to an account.
func (r *Repository) Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var existing []models.User
	if err := r.DB(ctx).Select("username", "email").Scopes(matching(username, email)).Find(&existing).Error; err != nil {
		return false, false, err
	}
	for _, u := range existing {
		usernameTaken = usernameTaken || strings.EqualFold(u.Username, username)
		emailTaken = emailTaken || strings.EqualFold(u.Email, email)
	}
	return usernameTaken, emailTaken, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).Model(&models.User{ID: id}).UpdateColumn("last_login_at", at).Error
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).Model(&models.User{ID: id}).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}).Error
}
