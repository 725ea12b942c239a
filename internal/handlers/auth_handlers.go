package handlers

import (
	"errors"
	"net/http"
	"time"

	"protekgest/internal/auth"
	"protekgest/internal/middleware"
	"protekgest/internal/models"
)

// LoginHandler autentica l'utente e imposta il cookie di sessione
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}

	var credenziali struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := leggiJSON(r, &credenziali); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}

	sessione, err := auth.Login(credenziali.Username, credenziali.Password)
	if err != nil {
		rispondiErrore(w, http.StatusUnauthorized, "credenziali non valide")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    sessione.Token,
		Path:     "/",
		Expires:  sessione.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	rispondiJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"username": sessione.Username,
			"ruolo":    sessione.Ruolo,
			"nome":     sessione.Nome,
			"cognome":  sessione.Cognome,
		},
	})
}

// LogoutHandler invalida la sessione corrente
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session_token"); err == nil {
		auth.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    "session_token",
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RegisterHandler crea un nuovo utente. Riservato ai tecnici: la
// registrazione libera non e' prevista, gli account li apre chi amministra.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}

	var richiesta struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Nome     string `json:"nome"`
		Cognome  string `json:"cognome"`
		Email    string `json:"email"`
		Ruolo    string `json:"ruolo"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if richiesta.Username == "" || richiesta.Password == "" {
		rispondiErrore(w, http.StatusBadRequest, "username e password sono obbligatori")
		return
	}
	if len(richiesta.Password) < 6 {
		rispondiErrore(w, http.StatusBadRequest, "la password deve avere almeno 6 caratteri")
		return
	}
	ruolo := models.Ruolo(richiesta.Ruolo)
	if ruolo != models.RuoloTecnico {
		ruolo = models.RuoloGuest
	}

	utente, err := auth.CreateUser(richiesta.Username, richiesta.Password,
		richiesta.Nome, richiesta.Cognome, richiesta.Email, ruolo)
	if err != nil {
		rispondiErrore(w, http.StatusConflict, "impossibile creare l'utente: %v", err)
		return
	}

	rispondiJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":       utente.ID,
			"username": utente.Username,
			"ruolo":    utente.Ruolo,
		},
	})
}

// CambioPasswordHandler aggiorna la password dell'utente in sessione,
// previa verifica di quella attuale
func CambioPasswordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	sessione := middleware.GetSession(r)
	if sessione == nil {
		rispondiErrore(w, http.StatusUnauthorized, "non autenticato")
		return
	}

	var richiesta struct {
		VecchiaPassword string `json:"vecchiaPassword"`
		NuovaPassword   string `json:"nuovaPassword"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if len(richiesta.NuovaPassword) < 6 {
		rispondiErrore(w, http.StatusBadRequest, "la nuova password deve avere almeno 6 caratteri")
		return
	}

	if err := auth.ChangePassword(sessione.UserID, richiesta.VecchiaPassword, richiesta.NuovaPassword); err != nil {
		if errors.Is(err, auth.ErrCredenzialiNonValide) {
			rispondiErrore(w, http.StatusUnauthorized, "password attuale non corretta")
			return
		}
		rispondiErrore(w, http.StatusInternalServerError, "errore aggiornamento password: %v", err)
		return
	}

	rispondiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MeHandler restituisce l'utente della sessione corrente
func MeHandler(w http.ResponseWriter, r *http.Request) {
	sessione := middleware.GetSession(r)
	if sessione == nil {
		rispondiErrore(w, http.StatusUnauthorized, "non autenticato")
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{
		"username": sessione.Username,
		"ruolo":    sessione.Ruolo,
		"nome":     sessione.Nome,
		"cognome":  sessione.Cognome,
	})
}
