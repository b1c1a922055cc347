package web

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/jobboard/app/web/enums"
	"github.com/umputun/jobboard/app/web/request"
)

const sessionCookie = "jobboard-session"

var (
	// ErrInvalidCredentials returned for wrong user name or password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthDisabled returned when no password hash is configured
	ErrAuthDisabled = errors.New("admin login disabled")
)

// Admin is the capability of an authenticated administrator.
// Guarded handlers get it from the request context only.
type Admin struct {
	User string
}

// Authenticator checks credentials of the single configured administrator
type Authenticator struct {
	user         string
	passwordHash []byte
}

// NewAuthenticator makes Authenticator for user with bcrypt password hash.
// Empty user defaults to "admin", empty hash disables login.
func NewAuthenticator(user, passwordHash string) *Authenticator {
	if user == "" {
		user = "admin"
	}
	return &Authenticator{user: user, passwordHash: []byte(passwordHash)}
}

// Enabled reports whether login is possible at all
func (a *Authenticator) Enabled() bool {
	return len(a.passwordHash) > 0
}

// Authenticate returns Admin capability for valid credentials
func (a *Authenticator) Authenticate(c request.Credentials) (Admin, error) {
	if !a.Enabled() {
		return Admin{}, ErrAuthDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(a.user)) == 1
	// bcrypt runs for unknown users as well
	pwErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(c.Password))
	if !userOK || pwErr != nil {
		return Admin{}, ErrInvalidCredentials
	}
	return Admin{User: a.user}, nil
}

type session struct {
	user      string
	expiresAt time.Time
}

// sessionStore keeps server-side sessions, cookie carries token signed with hmac-sha256
type sessionStore struct {
	mu       sync.Mutex
	secret   []byte
	ttl      time.Duration
	sessions map[string]session // token -> session
}

func newSessionStore(secret string, ttl time.Duration) (*sessionStore, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	return &sessionStore{secret: key, ttl: ttl, sessions: make(map[string]session)}, nil
}

// create makes a new session and returns the signed cookie value
func (s *sessionStore) create(user string, now time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.sessions[token] = session{user: user, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return token + "." + s.sign(token), nil
}

// get returns Admin for a valid and unexpired session referenced by cookie value
func (s *sessionStore) get(value string, now time.Time) (Admin, bool) {
	token, ok := s.verify(value)
	if !ok {
		return Admin{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Admin{}, false
	}
	if !now.Before(sess.expiresAt) {
		delete(s.sessions, token)
		return Admin{}, false
	}
	return Admin{User: sess.user}, true
}

// remove deletes session referenced by cookie value, unknown or tampered values ignored
func (s *sessionStore) remove(value string) {
	token, ok := s.verify(value)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// sweep removes expired sessions and returns how many were removed
func (s *sessionStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookup returns Admin for the session cookie of the request
func (s *sessionStore) lookup(r *http.Request) (Admin, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Admin{}, false
	}
	return s.get(cookie.Value, time.Now())
}

func (s *sessionStore) sign(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify checks the signature and returns the bare token
func (s *sessionStore) verify(value string) (string, bool) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(token))) {
		return "", false
	}
	return token, true
}

type adminCtxKey struct{}

func withAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminCtxKey{}, a)
}

// adminFrom returns Admin capability placed into context by requireAdmin
func adminFrom(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminCtxKey{}).(Admin)
	return a, ok
}

// requireAdmin passes only requests with a valid session, others are redirected to login page
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := s.sessions.lookup(r)
		if !ok {
			s.setFlash(w, r, enums.FlashKindError, "Please log in to access this page.")
			s.redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAdmin(r.Context(), admin)))
	})
}

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", s.newTemplateData(w, r))
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	creds := request.ParseCredentials(r.PostForm)

	admin, err := s.auth.Authenticate(creds)
	if err != nil {
		log.Printf("[INFO] failed login for %q from %s: %v", creds.Username, r.RemoteAddr, err)
		data := s.newTemplateData(w, r)
		data.Username = creds.Username
		data.Error = "Invalid credentials."
		s.render(w, http.StatusOK, "login", data)
		return
	}

	// drop the previous session, if any
	if old, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.remove(old.Value)
	}

	value, err := s.sessions.create(admin.User, time.Now())
	if err != nil {
		log.Printf("[ERROR] failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     s.cookiePath(),
		MaxAge:   int(s.sessions.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	log.Printf("[INFO] %s logged in from %s", admin.User, r.RemoteAddr)

	s.setFlash(w, r, enums.FlashKindSuccess, "Logged in successfully.")
	s.redirect(w, r, "/admin/post")
}

// handleLogout removes the session and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.remove(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1, // delete cookie
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})

	s.setFlash(w, r, enums.FlashKindSuccess, "Logged out successfully.")
	s.redirect(w, r, "/")
}
