package http

import (
	"log/slog"
	"net/http"
)

// handleLogin serves the login form and checks submitted passwords.
// Failed attempts rerender the form with a 401; the rate limiter on this
// route is what slows a guessing loop down.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.sessions.valid(sessionToken(r)) {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", struct{ Error string }{})

	case http.MethodPost:
		if resp := ParseFormOrFail(r); resp != nil {
			resp.Write(w)
			return
		}

		password := r.Form.Get("password")
		if !s.gate.Verify(password) {
			slog.WarnContext(r.Context(), "Failed admin login",
				"client_ip", s.detector.ExtractClientIP(r))
			w.WriteHeader(http.StatusUnauthorized)
			s.render(w, r, "login.html", struct{ Error string }{Error: "Wrong password"})
			return
		}

		token, err := s.sessions.create()
		if err != nil {
			slog.ErrorContext(r.Context(), "Session creation failed", "error", err)
			InternalServerError("Could not start a session").Write(w)
			return
		}
		s.sessions.setSessionCookie(w, r, token)

		slog.InfoContext(r.Context(), "Admin logged in",
			"client_ip", s.detector.ExtractClientIP(r))
		http.Redirect(w, r, "/admin", http.StatusSeeOther)

	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleLogout revokes the session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if token := sessionToken(r); token != "" {
		s.sessions.revoke(token)
	}
	clearSessionCookie(w)

	slog.InfoContext(r.Context(), "Admin logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
