package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/linkedgrow/dashboard/internal/models"
)

// Cookie session keys.
const (
	sessionKeyUserID = "user_id"
	sessionKeyEmail  = "user_email"
	sessionKeyName   = "user_name"
)

// Gin context keys set by the middleware.
const (
	ContextKeySession = "session"
	ContextKeyUserID  = "user_id"
)

// ErrNoSession means the request carries no valid credentials.
var ErrNoSession = errors.New("no session")

// Session is the verified identity attached to a request.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	// Source is "cookie" or "bearer".
	Source string `json:"-"`
}

// SessionStore issues and validates sessions.
type SessionStore interface {
	Resolve(c *gin.Context) (*Session, error)
	Start(c *gin.Context, u *models.User) error
	Clear(c *gin.Context) error
}

// Claims are the bearer token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// CookieSessions reads the signed cookie session first and falls back to an
// HS256 bearer token when a JWT secret is configured.
type CookieSessions struct {
	jwtSecret []byte
	issuer    string
	now       func() time.Time
}

func NewCookieSessions(jwtSecret, issuer string) *CookieSessions {
	return &CookieSessions{jwtSecret: []byte(jwtSecret), issuer: issuer, now: time.Now}
}

func (s *CookieSessions) Resolve(c *gin.Context) (*Session, error) {
	sess := sessions.Default(c)
	if id, ok := sess.Get(sessionKeyUserID).(string); ok && id != "" {
		email, _ := sess.Get(sessionKeyEmail).(string)
		name, _ := sess.Get(sessionKeyName).(string)
		return &Session{UserID: id, Email: email, Name: name, Source: "cookie"}, nil
	}

	token, ok := extractBearerToken(c.GetHeader("Authorization"))
	if !ok || len(s.jwtSecret) == 0 {
		return nil, ErrNoSession
	}
	return s.verify(token)
}

func (s *CookieSessions) Start(c *gin.Context, u *models.User) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(sessionKeyUserID, u.ID)
	sess.Set(sessionKeyEmail, u.Email)
	sess.Set(sessionKeyName, u.Name)
	if err := sess.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *CookieSessions) Clear(c *gin.Context) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// IssueToken signs a bearer token for u. Returns "" without a configured secret.
func (s *CookieSessions) IssueToken(u *models.User, ttl time.Duration) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", nil
	}
	now := s.now()
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *CookieSessions) verify(token string) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing sub", ErrNoSession)
	}
	return &Session{UserID: claims.Subject, Email: claims.Email, Name: claims.Name, Source: "bearer"}, nil
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
