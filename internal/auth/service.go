package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, req RequestPasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, req ConfirmPasswordResetRequest) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type resetTokens interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Consume(ctx context.Context, token string) (uuid.UUID, error)
	TTL() time.Duration
}

type cartMerger interface {
	MergeGuestIntoUser(ctx context.Context, sessionToken string, userID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Users          *users.Repository
	Tx             txRunner
	Outbox         outbox.Emitter
	SessionManager sessionManager
	Carts          cartMerger
	Resets         resetTokens
	// ResetURL is the storefront page that receives ?token=.
	ResetURL       string
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	users     *users.Repository
	tx        txRunner
	outbox    outbox.Emitter
	sessions  sessionManager
	carts     cartMerger
	resets    resetTokens
	resetURL  string
	jwt       config.JWTConfig
	passwords *security.Hasher
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	for dep, present := range map[string]bool{
		"user repository":    p.Users != nil,
		"transaction runner": p.Tx != nil,
		"outbox emitter":     p.Outbox != nil,
		"session manager":    p.SessionManager != nil,
		"cart service":       p.Carts != nil,
		"reset tokens":       p.Resets != nil,
		"reset url":          strings.TrimSpace(p.ResetURL) != "",
		"logger":             p.Logger != nil,
	} {
		if !present {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "auth: %s is required", dep)
		}
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		users:     p.Users,
		tx:        p.Tx,
		outbox:    p.Outbox,
		sessions:  p.SessionManager,
		carts:     p.Carts,
		resets:    p.Resets,
		resetURL:  strings.TrimSpace(p.ResetURL),
		jwt:       p.JWTConfig,
		passwords: security.NewHasher(p.PasswordConfig),
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

// Login issues an access and refresh token pair. A guest cart named in the
// request is folded into the account; a failed merge does not fail login.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Login, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	resp, err := s.issue(ctx, user, now)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(req.CartSession); token != "" {
		s.adoptGuestCart(ctx, token, user.ID)
	}
	return resp, nil
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time) (*LoginResponse, error) {
	jti := session.NewAccessID()
	access, err := pkgAuth.MintAccessToken(s.jwt, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		JTI:      jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &LoginResponse{AccessToken: access, RefreshToken: refresh, User: users.FromModel(user)}, nil
}

func (s *service) adoptGuestCart(ctx context.Context, token string, userID uuid.UUID) {
	ctx = s.logg.WithUserID(s.logg.WithCartSession(ctx, token), userID.String())
	if err := s.carts.MergeGuestIntoUser(ctx, token, userID); err != nil {
		s.logg.Error(ctx, "auth.cart_merge_failed", err)
	}
}

// authenticate answers every unknown login or wrong password with the same
// error. A hash made at an older argon2 cost is upgraded on the way through.
func (s *service) authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return nil, userLookupError(err)
	}
	match, stale, err := s.passwords.Verify(password, user.PasswordHash)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	case !match:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	case stale:
		s.rehash(ctx, user, password)
	}
	return user, nil
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
}

// rehash keeps the old hash when anything goes wrong.
func (s *service) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.passwords.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "auth.rehash_failed", err)
		return
	}
	user.PasswordHash = hash
}
