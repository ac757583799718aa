package chi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Authenticator resolves Bearer tokens to principals.
// Static API keys yield readers; HS256 JWTs carry role and city claims.
type Authenticator struct {
	keys   map[string]struct{}
	secret []byte
}

// NewAuthenticator creates an Authenticator. Empty keys and secret disable authentication.
func NewAuthenticator(apiKeys []string, jwtSecret string) *Authenticator {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Authenticator{keys: keys, secret: []byte(jwtSecret)}
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0 || len(a.secret) > 0
}

// Principal resolves a raw Bearer token.
func (a *Authenticator) Principal(token string) (authz.Principal, error) {
	if _, ok := a.keys[token]; ok {
		return authz.Principal{Subject: "api-key", Role: authz.RoleReader}, nil
	}
	if len(a.secret) == 0 {
		return authz.Principal{}, fmt.Errorf("invalid api key: %w", domain.ErrUnauthenticated)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return authz.Principal{}, fmt.Errorf("invalid token: %w", domain.ErrUnauthenticated)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return authz.Principal{}, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthenticated)
	}

	p := authz.Principal{Role: authz.ParseRole(claimString(claims, "role"))}
	p.Subject = claimString(claims, "sub")
	if p.Subject == "" {
		p.Subject = "token"
	}
	if raw, ok := claims["cities"].([]interface{}); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok && s != "" {
				p.Cities = append(p.Cities, s)
			}
		}
	}
	return p, nil
}

// Middleware authenticates every non-exempt request and stores the principal in the context.
// With authentication disabled every request is anonymous.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok || !a.Enabled() {
				next.ServeHTTP(w, r.WithContext(authz.WithPrincipal(r.Context(), authz.Anonymous())))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeUnauthorized(w, "authorization header must use Bearer scheme")
				return
			}

			p, err := a.Principal(auth[len(bearerPrefix):])
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			ctx := authz.WithPrincipal(r.Context(), p)
			ctx = logpkg.ContextWithLogger(ctx, logpkg.FromContext(ctx).With(
				zap.String("principal", p.Subject),
				zap.String("role", string(p.Role)),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueToken signs an HS256 token for subject with the given role and cities.
func IssueToken(secret, subject string, role authz.Role, cities []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    subject,
		"role":   string(role),
		"cities": cities,
		"iat":    now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func claimString(c jwt.MapClaims, key string) string {
	s, _ := c[key].(string)
	return s
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"success":   false,
		"error":     msg,
		"code":      payload.CodeUnauthenticated,
		"retryable": false,
	})
}
