package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/db"
)

const cookieName = "duel_token"

// Request payloads for signup/login.
type signupReq struct{ Username, Password string }
type loginReq struct{ Username, Password string }

type verifyReq struct {
	Email string `json:"email"`
}
type confirmReq struct {
	Code string `json:"code"`
}

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func userFrom(ctx context.Context) *authUser {
	me, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return me
}

// mountAuthRoutes registers authentication + gated routes.
func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())

		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, userFrom(r.Context()))
		})
		r.Get("/stats/me", s.handleStats)
		r.Post("/auth/verify", s.handleVerify)
		r.Post("/auth/verify/confirm", s.handleVerifyConfirm)
	})
}

// handleSignup creates a new user, signs a JWT and sets the auth cookie.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.db.CreateUser(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, db.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "Username taken")
		return
	case errors.Is(err, db.ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), db.ErrInvalidSignup.Error()+": "))
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("create user")
		writeError(w, http.StatusInternalServerError, "signup_failed")
		return
	}
	tok, ok := s.issueToken(w, r, u)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt, "token": tok})
}

// handleLogin authenticates a user and sets the auth cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.db.UserByUsername(r.Context(), body.Username)
	if err != nil || !db.CheckPassword(u.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	tok, ok := s.issueToken(w, r, u)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username, "token": tok})
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	u, err := s.db.UserByID(r.Context(), me.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	out := map[string]any{
		"id":       u.ID,
		"chips":    u.Chips,
		"verified": u.Verified,
	}
	switch code, err := s.db.Bound(r.Context(), u.ID); {
	case err == nil:
		out["match"] = code
	case !errors.Is(err, db.ErrNotFound):
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("user", u.ID).Msg("read match binding")
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVerify issues a code for the posted address and mails it.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	me := userFrom(r.Context())
	code, err := s.db.IssueCode(r.Context(), me.ID, body.Email)
	switch {
	case errors.Is(err, db.ErrCodeTooSoon):
		writeError(w, http.StatusTooManyRequests, "A code was sent recently. Please wait before requesting another.")
		return
	case errors.Is(err, db.ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, "invalid e-mail address")
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue verification code")
		writeError(w, http.StatusInternalServerError, "verify_failed")
		return
	}
	address := strings.TrimSpace(body.Email)
	if err := s.mail.Send(r.Context(), address, code); err != nil {
		// The code is already stored and resends are throttled, so it has
		// to reach an operator some other way.
		zerolog.Ctx(r.Context()).Warn().Err(err).
			Str("user", me.ID).
			Str("to", address).
			Str("code", code).
			Msg("verification mail failed; code logged instead")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Check your inbox for a verification code"})
}

func (s *Server) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var body confirmReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	me := userFrom(r.Context())
	err := s.db.ConfirmCode(r.Context(), me.ID, body.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "verified": true})
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "No verification code found")
	case errors.Is(err, db.ErrCodeExpired):
		writeError(w, http.StatusGone, "Verification code expired")
	case errors.Is(err, db.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "Invalid verification code")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("confirm verification code")
		writeError(w, http.StatusInternalServerError, "verify_failed")
	}
}

// --------------------------- auth middleware --------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if me, err := s.authenticate(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			me, err := s.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me)))
		})
	}
}

var (
	errNoToken      = errors.New("unauthorized")
	errInvalidToken = errors.New("invalid token")
)

// authenticate validates the request's token and checks the account still
// exists.
func (s *Server) authenticate(r *http.Request) (*authUser, error) {
	tokenStr := bearerOrCookie(r)
	if tokenStr == "" {
		return nil, errNoToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, errInvalidToken
	}
	if _, err := s.db.UserByID(r.Context(), id); err != nil {
		return nil, errInvalidToken
	}
	return &authUser{ID: id, Username: username}, nil
}

// ------------------------------ JWT & cookies ------------------------------

// issueToken signs a token for u and sets it as the auth cookie. It writes
// the error response itself when signing fails.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, u *db.User) (string, bool) {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return "", false
	}
	s.setAuthCookie(w, tok, exp)
	return tok, true
}

// signJWT creates an HS256 JWT with id/username, valid for JWTTTL.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.cfg.JWTTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// secureCookies is on when the public URL is served over TLS.
func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.cfg.PublicURL, "https://")
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure := s.secureCookies()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	secure := s.secureCookies()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
