// Package auth handles the single admin account: password verification, signed
// session tokens carried in a cookie, and the login captcha.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "navigator"

	audienceSession = "admin-session"
	audienceCaptcha = "admin-captcha"

	// CaptchaTTL is how long a captcha answer stays valid.
	CaptchaTTL = 5 * time.Minute
)

// ErrInvalidToken is returned for any token that fails signature, audience or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims structure
type Claims struct {
	Username   string `json:"username,omitempty"`
	AnswerHash string `json:"answer_hash,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies admin session and captcha tokens with one
// HMAC secret. Sessions and captchas use different audiences so one can never be
// replayed as the other.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	// spent maps the id of every verified captcha to its expiry.
	spentMu sync.Mutex
	spent   map[string]time.Time
}

// NewSessionManager returns a manager using secret. An empty secret is replaced by
// a random one, which means sessions do not survive restarts.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		secret = generateRandomSecret()
		slog.Warn("admin.session_secret not set; using a random secret, sessions will not persist across restarts")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		spent:  make(map[string]time.Time),
	}
}

// TTL returns the session lifetime, for the cookie Max-Age.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session token for username.
func (m *SessionManager) Issue(username string) (string, error) {
	return m.sign(&Claims{Username: username}, audienceSession, m.ttl)
}

// Validate parses a session token and returns its claims.
func (m *SessionManager) Validate(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString, audienceSession)
	if err != nil {
		return nil, err
	}
	if claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueCaptcha creates a token holding only the hash of answer, so the answer
// itself never leaves the server.
func (m *SessionManager) IssueCaptcha(answer string) (string, error) {
	claims := &Claims{AnswerHash: hashAnswer(answer)}
	claims.ID = uuid.NewString()
	return m.sign(claims, audienceCaptcha, CaptchaTTL)
}

// VerifyCaptcha reports whether input answers the captcha in tokenString.
// Comparison ignores case and surrounding whitespace. A token can be checked
// once: the first attempt spends it whether or not the answer is right.
func (m *SessionManager) VerifyCaptcha(tokenString, input string) bool {
	if tokenString == "" || strings.TrimSpace(input) == "" {
		return false
	}
	claims, err := m.parse(tokenString, audienceCaptcha)
	if err != nil || claims.ID == "" {
		return false
	}
	if !m.spend(claims.ID, claims.ExpiresAt.Time) {
		return false
	}
	want := hashAnswer(input)
	return subtle.ConstantTimeCompare([]byte(claims.AnswerHash), []byte(want)) == 1
}

// spend marks a captcha id as used and reports whether it was still unused.
// Ids are forgotten once their token has expired.
func (m *SessionManager) spend(id string, expires time.Time) bool {
	m.spentMu.Lock()
	defer m.spentMu.Unlock()

	now := m.now()
	for k, exp := range m.spent {
		if now.After(exp) {
			delete(m.spent, k)
		}
	}
	if _, used := m.spent[id]; used {
		return false
	}
	m.spent[id] = expires
	return true
}

func (m *SessionManager) sign(claims *Claims, audience string, ttl time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        claims.ID,
		Issuer:    issuer,
		Subject:   claims.Username,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *SessionManager) parse(tokenString, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func hashAnswer(answer string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(answer))))
	return hex.EncodeToString(sum[:])
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
