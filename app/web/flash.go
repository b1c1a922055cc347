package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobboard/app/web/enums"
)

const flashCookie = "jobboard-flash"

// flash is a one-time notice shown on the next rendered page
type flash struct {
	Kind    enums.FlashKind `json:"kind"`
	Message string          `json:"message"`
}

// setFlash stores notice in a cookie, it survives a single redirect
func (s *Server) setFlash(w http.ResponseWriter, r *http.Request, kind enums.FlashKind, msg string) {
	data, err := json.Marshal(flash{Kind: kind, Message: msg})
	if err != nil {
		log.Printf("[WARN] failed to encode flash: %v", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     s.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
}

// popFlash returns pending notice and clears its cookie. Broken cookies are dropped silently.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return flash{}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		log.Printf("[DEBUG] invalid flash cookie: %v", err)
		return flash{}
	}
	var f flash
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("[DEBUG] invalid flash cookie: %v", err)
		return flash{}
	}
	return f
}
