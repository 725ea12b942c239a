package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"protekgest/internal/auth"
)

type contextKey string

const SessionKey contextKey = "session"

// GetSession recupera la sessione dal contesto della richiesta
func GetSession(r *http.Request) *auth.Session {
	session, ok := r.Context().Value(SessionKey).(*auth.Session)
	if !ok {
		return nil
	}
	return session
}

// RequireAuth middleware che richiede autenticazione (risposte JSON)
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_token")
		if err != nil {
			rispondiNonAutorizzato(w, "Non autorizzato")
			return
		}

		session, ok := auth.Sessions.Get(cookie.Value)
		if !ok {
			// Rimuovi il cookie non valido
			http.SetCookie(w, &http.Cookie{
				Name:   "session_token",
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
			rispondiNonAutorizzato(w, "Sessione scaduta")
			return
		}

		// Aggiungi la sessione al contesto
		ctx := context.WithValue(r.Context(), SessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTecnico middleware che richiede ruolo tecnico
func RequireTecnico(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSession(r)
		if session == nil {
			rispondiNonAutorizzato(w, "Non autorizzato")
			return
		}

		if !session.IsTecnico() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Accesso non autorizzato. Solo i tecnici possono eseguire questa operazione."})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rispondiNonAutorizzato(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
