package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"golang.org/x/crypto/bcrypt"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/config"
)

type ctxKey int

const subjectKey ctxKey = iota

var errBadCredential = errors.New("invalid credential")

// Authenticator checks control API credentials. A request passes with the
// shared secret (plain or bcrypt-hashed) or with an HS256 JWT carrying a
// subject. Failures are counted per client IP and once the limit is used up
// the IP gets 429 until the window passes.
type Authenticator struct {
	secret     string
	secretHash []byte
	jwtKey     []byte
	failures   *limiter.Limiter
	logger     *slog.Logger
}

func NewAuthenticator(cfg *config.Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	limit := int64(cfg.AuthFailLimit)
	if limit <= 0 {
		limit = 10
	}
	window := cfg.AuthFailWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	a := &Authenticator{
		secret:   cfg.ControlAPISecret,
		failures: limiter.New(memory.NewStore(), limiter.Rate{Period: window, Limit: limit}),
		logger:   logger,
	}
	if cfg.ControlAPISecretHash != "" {
		a.secretHash = []byte(cfg.ControlAPISecretHash)
	}
	if cfg.ControlJWTSecret != "" {
		a.jwtKey = []byte(cfg.ControlJWTSecret)
	}
	return a
}

// Subject returns who authenticated the request: "secret" or the JWT sub.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// Middleware guards next with the authenticator.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		lctx, err := a.failures.Peek(r.Context(), key)
		if err != nil {
			respond.WriteError(w, http.StatusInternalServerError, "RATE_LIMITER", "Rate limiter error")
			return
		}
		if lctx.Reached || lctx.Remaining <= 0 {
			w.Header().Set("Retry-After", "60")
			respond.WriteError(w, http.StatusTooManyRequests, "AUTH_THROTTLED", "Too many failed authentication attempts")
			return
		}

		sub, err := a.check(credential(r))
		if err != nil {
			if _, ierr := a.failures.Increment(r.Context(), key, 1); ierr != nil {
				a.logger.Warn("Failed to count auth failure", "ip", key, "error", ierr)
			}
			a.logger.Warn("Control API auth failed", "ip", key, "path", r.URL.Path)
			respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid credentials")
			return
		}

		a.logger.Debug("Control API authenticated", "subject", sub, "path", r.URL.Path)
		ctx := context.WithValue(r.Context(), subjectKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) check(cred string) (string, error) {
	if cred == "" {
		return "", errBadCredential
	}
	if a.secret != "" && subtle.ConstantTimeCompare([]byte(cred), []byte(a.secret)) == 1 {
		return "secret", nil
	}
	if a.secretHash != nil && bcrypt.CompareHashAndPassword(a.secretHash, []byte(cred)) == nil {
		return "secret", nil
	}
	if a.jwtKey != nil && strings.Count(cred, ".") == 2 {
		if sub, err := a.checkJWT(cred); err == nil {
			return sub, nil
		}
	}
	return "", errBadCredential
}

func (a *Authenticator) checkJWT(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errBadCredential
	}
	if claims.Subject == "" {
		return "", errBadCredential
	}
	return claims.Subject, nil
}

// credential reads the bearer token, falling back to ?token=.
func credential(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) >= 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || ip == "" {
		return r.RemoteAddr
	}
	return ip
}
