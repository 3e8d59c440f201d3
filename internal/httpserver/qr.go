package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/robalobadob/wordduel/internal/game"
)

const qrSize = 320 // mobile-friendly size

// handleQR serves a PNG QR code for a private match's invite link.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if _, err := s.coord.Session(code); err != nil {
		if errors.Is(err, game.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such match")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup_failed")
		return
	}

	png, err := qrcode.Encode(s.inviteURL(code), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) inviteURL(code string) string {
	return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/join/" + code
}
