package auth

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/crypto"
	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/ratelimit"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/markbates/goth/gothic"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const forgotPasswordMessage = "If an account exists for that email, a password reset link has been sent."

// Accounts is the slice of the store the auth handlers use.
type Accounts interface {
	store.Users
	store.ResetTokens
	store.Identities
}

// Options configure the password and token flows.
type Options struct {
	// AppURL is the public origin used to build reset links.
	AppURL   string
	ResetTTL time.Duration
	// TokenTTL is the lifetime of bearer tokens returned on sign-in.
	TokenTTL time.Duration
}

type Handler struct {
	accounts Accounts
	sessions SessionStore
	tokens   *CookieSessions
	mailer   email.Sender
	opts     Options
	log      *zap.Logger
	now      func() time.Time

	resetLimiter ratelimit.KeyLimiter
}

func NewHandler(accounts Accounts, sessions SessionStore, mailer email.Sender, opts Options, log *zap.Logger) *Handler {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		accounts: accounts,
		sessions: sessions,
		mailer:   mailer,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
	if cs, ok := sessions.(*CookieSessions); ok {
		h.tokens = cs
	}
	return h
}

// SetClock replaces the time source used for token expiry.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// SetResetLimiter throttles forgot-password requests per email address.
func (h *Handler) SetResetLimiter(l ratelimit.KeyLimiter) {
	h.resetLimiter = l
}

type userView struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	OnboardingComplete bool   `json:"onboardingComplete"`
}

func viewOf(u *models.User) userView {
	return userView{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		SubscriptionStatus: u.SubscriptionStatus,
		OnboardingComplete: u.OnboardingComplete,
	}
}

// SignUp creates a password account and starts a session.
func (h *Handler) SignUp(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	addr, ok := normalizeEmail(req.Email)
	if !ok {
		respond.BadRequest(c, "A valid email is required")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.passwordError(c, err)
		return
	}

	u := &models.User{Email: addr, Name: strings.TrimSpace(req.Name), PasswordHash: &hash}
	if err := h.accounts.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			respond.Error(c, http.StatusConflict, "An account with this email already exists")
			return
		}
		h.log.Error("sign-up failed", zap.Error(err))
		respond.Internal(c, "Failed to create account", nil)
		return
	}

	h.log.Info("user signed up", zap.String("user_id", u.ID))
	h.startSession(c, u, http.StatusCreated)
}

// SignIn verifies email and password. Unknown email and wrong password
// produce the same response.
func (h *Handler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respond.BadRequest(c, "Email and password are required")
		return
	}

	u, err := h.accounts.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("sign-in lookup failed", zap.Error(err))
		respond.Internal(c, "Failed to sign in", nil)
		return
	}
	if u == nil || u.PasswordHash == nil || !CheckPassword(*u.PasswordHash, req.Password) {
		respond.Error(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.startSession(c, u, http.StatusOK)
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.sessions.Clear(c); err != nil {
		h.log.Warn("session clear failed", zap.Error(err))
	}
	respond.OK(c, gin.H{"message": "Signed out"})
}

// GetSession returns the signed-in user.
func (h *Handler) GetSession(c *gin.Context) {
	u, err := h.accounts.GetUser(c.Request.Context(), UserID(c))
	if errors.Is(err, store.ErrNotFound) {
		_ = h.sessions.Clear(c)
		respond.Unauthenticated(c)
		return
	}
	if err != nil {
		h.log.Error("session lookup failed", zap.Error(err))
		respond.Internal(c, "Failed to load session", nil)
		return
	}
	respond.OK(c, gin.H{"user": viewOf(u)})
}

// ForgotPassword issues a reset token and emails it. The response is the
// same whether or not the account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	addr, ok := normalizeEmail(req.Email)
	if !ok {
		respond.BadRequest(c, "Email is required")
		return
	}
	ctx := c.Request.Context()

	if h.resetLimiter != nil {
		allowed, err := h.resetLimiter.Allow(ctx, "forgot:"+addr)
		if err != nil {
			h.log.Warn("reset limiter unavailable", zap.Error(err))
		} else if !allowed {
			respond.Error(c, http.StatusTooManyRequests, "Too many reset requests, please try again later")
			return
		}
	}

	u, err := h.accounts.GetUserByEmail(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		respond.OK(c, gin.H{"message": forgotPasswordMessage})
		return
	}
	if err != nil {
		h.log.Error("forgot-password lookup failed", zap.Error(err))
		respond.Internal(c, "Failed to process request", nil)
		return
	}

	token, err := crypto.NewOpaqueToken()
	if err != nil {
		h.log.Error("reset token generation failed", zap.Error(err))
		respond.Internal(c, "Failed to process request", nil)
		return
	}
	rec := &models.PasswordResetToken{
		Email:     u.Email,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: h.now().UTC().Add(h.opts.ResetTTL),
	}
	if err := h.accounts.ReplaceResetToken(ctx, rec); err != nil {
		h.log.Error("reset token store failed", zap.Error(err))
		respond.Internal(c, "Failed to process request", nil)
		return
	}

	if err := h.sendResetEmail(ctx, u.Email, token); err != nil {
		// Reported to the caller as success so the response cannot reveal
		// which addresses have accounts.
		h.log.Error("reset email failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	respond.OK(c, gin.H{"message": forgotPasswordMessage})
}

// ResetPassword consumes a reset token and sets a new password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.Email == "" || req.Password == "" {
		respond.BadRequest(c, "Token, email and password are required")
		return
	}
	if len(req.Password) < MinPasswordLength {
		respond.BadRequest(c, ErrPasswordTooShort.Error())
		return
	}
	ctx := c.Request.Context()
	addr := strings.TrimSpace(req.Email)

	rec, err := h.accounts.FindResetToken(ctx, addr, crypto.HashToken(req.Token))
	if errors.Is(err, store.ErrNotFound) {
		respond.BadRequest(c, "Invalid or expired reset token")
		return
	}
	if err != nil {
		h.log.Error("reset token lookup failed", zap.Error(err))
		respond.Internal(c, "Failed to reset password", nil)
		return
	}
	if rec.Expired(h.now()) {
		if err := h.accounts.DeleteResetToken(ctx, rec.ID); err != nil {
			h.log.Warn("expired token cleanup failed", zap.Error(err))
		}
		respond.BadRequest(c, "Reset token has expired")
		return
	}

	u, err := h.accounts.GetUserByEmail(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		_ = h.accounts.DeleteResetToken(ctx, rec.ID)
		respond.BadRequest(c, "Invalid or expired reset token")
		return
	}
	if err != nil {
		h.log.Error("reset user lookup failed", zap.Error(err))
		respond.Internal(c, "Failed to reset password", nil)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.passwordError(c, err)
		return
	}
	if err := h.accounts.UpdatePassword(ctx, u.ID, hash); err != nil {
		h.log.Error("password update failed", zap.String("user_id", u.ID), zap.Error(err))
		respond.Internal(c, "Failed to reset password", nil)
		return
	}
	if err := h.accounts.DeleteResetTokensForEmail(ctx, u.Email); err != nil {
		h.log.Warn("reset token cleanup failed", zap.Error(err))
	}

	h.log.Info("password reset", zap.String("user_id", u.ID))
	respond.OK(c, gin.H{"message": "Password has been reset successfully"})
}

// DeleteAccount removes the signed-in user. The body must repeat the
// account email. Any failure is reported; nothing is half-deleted.
func (h *Handler) DeleteAccount(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		respond.BadRequest(c, "Email is required")
		return
	}
	ctx := c.Request.Context()
	userID := UserID(c)

	u, err := h.accounts.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		respond.Unauthenticated(c)
		return
	}
	if err != nil {
		h.log.Error("delete account lookup failed", zap.String("user_id", userID), zap.Error(err))
		respond.Internal(c, "Failed to delete account", nil)
		return
	}
	if strings.TrimSpace(req.Email) != u.Email {
		respond.BadRequest(c, "Email does not match the signed-in account")
		return
	}

	h.log.Info("deleting account", zap.String("user_id", userID))
	if err := h.accounts.DeleteUser(ctx, userID); err != nil {
		h.log.Error("delete account failed", zap.String("user_id", userID), zap.Error(err))
		respond.Internal(c, "Failed to delete account", err)
		return
	}
	if err := h.sessions.Clear(c); err != nil {
		h.log.Warn("session clear after delete failed", zap.Error(err))
	}

	h.log.Info("account deleted", zap.String("user_id", userID))
	respond.OK(c, gin.H{"message": "Account deleted"})
}

// GoogleLogin starts the OAuth flow.
func (h *Handler) GoogleLogin(c *gin.Context) {
	setProvider(c, "google")
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// GoogleCallback completes OAuth, links the identity and starts a session.
func (h *Handler) GoogleCallback(c *gin.Context) {
	setProvider(c, "google")

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		h.log.Warn("oauth callback failed", zap.Error(err))
		c.Redirect(http.StatusFound, LoginPath+"?error=auth_failed")
		return
	}
	ctx := c.Request.Context()

	u, err := h.accounts.GetUserByEmail(ctx, gothUser.Email)
	if errors.Is(err, store.ErrNotFound) {
		u = &models.User{Email: gothUser.Email, Name: gothUser.Name}
		err = h.accounts.CreateUser(ctx, u)
	}
	if err != nil {
		h.log.Error("oauth user upsert failed", zap.Error(err))
		c.Redirect(http.StatusFound, LoginPath+"?error=auth_failed")
		return
	}

	identity := &models.AuthIdentity{
		UserID:         u.ID,
		Provider:       gothUser.Provider,
		ProviderUserID: gothUser.UserID,
		AccessToken:    gothUser.AccessToken,
		RefreshToken:   gothUser.RefreshToken,
	}
	if !gothUser.ExpiresAt.IsZero() {
		exp := gothUser.ExpiresAt
		identity.TokenExpiry = &exp
	}
	if err := h.accounts.UpsertIdentity(ctx, identity); err != nil {
		h.log.Warn("identity upsert failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	if err := h.accounts.TouchLogin(ctx, u.ID, h.now().UTC()); err != nil {
		h.log.Warn("touch login failed", zap.Error(err))
	}
	if err := h.sessions.Start(c, u); err != nil {
		h.log.Error("session save failed", zap.Error(err))
		c.Redirect(http.StatusFound, LoginPath+"?error=session_failed")
		return
	}

	h.log.Info("user authenticated", zap.String("user_id", u.ID), zap.String("provider", gothUser.Provider))
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *Handler) startSession(c *gin.Context, u *models.User, status int) {
	if err := h.sessions.Start(c, u); err != nil {
		h.log.Error("session save failed", zap.Error(err))
		respond.Internal(c, "Failed to start session", nil)
		return
	}
	if err := h.accounts.TouchLogin(c.Request.Context(), u.ID, h.now().UTC()); err != nil {
		h.log.Warn("touch login failed", zap.Error(err))
	}

	body := gin.H{"user": viewOf(u)}
	if h.tokens != nil {
		token, err := h.tokens.IssueToken(u, h.opts.TokenTTL)
		if err != nil {
			h.log.Warn("bearer token issue failed", zap.Error(err))
		} else if token != "" {
			body["token"] = token
		}
	}
	respond.JSON(c, status, body)
}

func (h *Handler) sendResetEmail(ctx context.Context, to, token string) error {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", to)
	link := h.opts.AppURL + "/reset-password?" + q.Encode()

	msg, err := email.PasswordReset(to, link, h.opts.ResetTTL)
	if err != nil {
		return err
	}
	return h.mailer.Send(ctx, msg)
}

func (h *Handler) passwordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		respond.BadRequest(c, err.Error())
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		respond.BadRequest(c, "Password is too long")
	default:
		h.log.Error("password hash failed", zap.Error(err))
		respond.Internal(c, "Failed to process password", nil)
	}
}

// setProvider adds the query parameter gothic reads the provider from.
func setProvider(c *gin.Context, provider string) {
	q := c.Request.URL.Query()
	q.Set("provider", provider)
	c.Request.URL.RawQuery = q.Encode()
}

func normalizeEmail(raw string) (string, bool) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", false
	}
	return addr, true
}
