package facts

import (
	"net"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// DebugTokenParam is the query parameter carrying a signed debug token.
const DebugTokenParam = "debug_token"

// DebugOverride lets test traffic pose as another client IP. The IP comes from
// the "ip" claim of an HS256 token signed with the configured secret.
type DebugOverride struct {
	secret []byte
}

// NewDebugOverride returns nil when secret is empty, which disables overrides.
func NewDebugOverride(secret string) *DebugOverride {
	if secret == "" {
		return nil
	}
	return &DebugOverride{secret: []byte(secret)}
}

type debugClaims struct {
	IP string `json:"ip"`
	jwt.RegisteredClaims
}

// ClientIP returns the overriding IP when the request carries a valid token.
func (d *DebugOverride) ClientIP(r *http.Request) (string, bool) {
	raw := r.URL.Query().Get(DebugTokenParam)
	if raw == "" {
		return "", false
	}

	var claims debugClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false
	}

	ip := net.ParseIP(claims.IP)
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}

// SignDebugToken issues a token for ip. Used by tooling and tests.
func (d *DebugOverride) SignDebugToken(ip string, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, debugClaims{IP: ip, RegisteredClaims: claims})
	return token.SignedString(d.secret)
}
