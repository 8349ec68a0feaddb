package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/musician-app/apiserver/config"
	"github.com/musician-app/apiserver/internal/platform"
	"github.com/musician-app/apiserver/internal/services"
	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the identity resolved by the middleware, or
// an anonymous identity when none resolved.
func IdentityFromContext(ctx context.Context) services.Identity {
	if ident, ok := ctx.Value(identityKey).(services.Identity); ok {
		return ident
	}
	return services.Identity{}
}

// IdentityMiddleware resolves the caller's identity from the platform token
// header, falling back to the signed identity cookie. Resolution never
// rejects the request; endpoints decide whether anonymous is acceptable.
type IdentityMiddleware struct {
	verifier platform.TokenVerifier
	cfg      config.AuthConfig
	logger   *zap.Logger
}

func NewIdentityMiddleware(verifier platform.TokenVerifier, cfg config.AuthConfig, logger *zap.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{verifier: verifier, cfg: cfg, logger: logger}
}

func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := services.Identity{}

		if token := strings.TrimSpace(r.Header.Get(platform.TokenHeader)); token != "" {
			platformUserID, err := m.verifier.VerifyToken(token)
			if err != nil {
				m.logger.Debug("platform token rejected", zap.Error(err))
			} else {
				ident.PlatformUserID = platformUserID
			}
		}

		if cookie, err := r.Cookie(m.cfg.CookieName); err == nil {
			userID, err := m.verifyCookie(cookie.Value)
			if err != nil {
				m.logger.Debug("identity cookie rejected", zap.Error(err))
			} else {
				ident.UserID = userID
			}
		}

		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetIdentityCookie establishes the fallback identity cookie so follow-up
// requests stay bound to the same user even without a platform token.
func (m *IdentityMiddleware) SetIdentityCookie(w http.ResponseWriter, userID string) {
	value, err := m.signCookie(userID)
	if err != nil {
		m.logger.Error("failed to sign identity cookie", zap.Error(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (m *IdentityMiddleware) signCookie(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.CookieTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.cfg.CookieSecret))
}

func (m *IdentityMiddleware) verifyCookie(value string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(m.cfg.CookieSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid cookie token")
	}
	return claims.Subject, nil
}
