package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Auth requires a bearer token whose session is still live.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return gate{cfg: cfg, sessions: sessions, logg: logg, required: true}.middleware
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func OptionalAuth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return gate{cfg: cfg, sessions: sessions, logg: logg}.middleware
}

type gate struct {
	cfg      config.JWTConfig
	sessions session.AccessSessionChecker
	logg     *logger.Logger
	required bool
}

func (g gate) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present := bearer(r.Header.Get("Authorization"))
		if !present && !g.required {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		if !present {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		claims, err := g.admit(r, token)
		if err != nil {
			responses.WriteError(ctx, g.logg, w, err)
			return
		}

		userID, role := claims.UserID.String(), string(claims.Role)
		ctx = with(with(with(ctx, keyUserID, userID), keyRole, role), keyAccessID, claims.ID)
		if g.logg != nil {
			ctx = g.logg.WithFields(g.logg.WithUserID(ctx, userID), map[string]any{"actor_role": role})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// admit checks the signature, then asks the session store whether the jti
// was revoked by a logout or password change.
func (g gate) admit(r *http.Request, token string) (*pkgAuth.AccessTokenClaims, error) {
	claims, err := pkgAuth.ParseAccessToken(g.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if g.sessions == nil {
		return claims, nil
	}
	live, err := g.sessions.HasSession(r.Context(), claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// bearer accepts "Bearer <token>" or a bare token.
func bearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	}
	return header, header != ""
}
