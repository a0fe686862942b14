package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	CartSessionHeader = "X-Cart-Session"
	cartSessionCookie = "cart_session"
	cartSessionMaxAge = 30 * 24 * time.Hour
	maxCartTokenLen   = 128
)

// CartSession resolves the guest cart token from the header or cookie and
// mints one when the client has none. The token is echoed in the response
// header so API clients without cookies can keep it.
func CartSession(secureCookie bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if token == "" {
				if cookie, err := r.Cookie(cartSessionCookie); err == nil {
					token = strings.TrimSpace(cookie.Value)
				}
			}
			if token == "" || len(token) > maxCartTokenLen {
				token = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cartSessionCookie,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cartSessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(CartSessionHeader, token)

			ctx := WithCartSession(r.Context(), token)
			if logg != nil {
				ctx = logg.WithCartSession(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
