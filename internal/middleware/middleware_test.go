package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"protekgest/internal/auth"
	"protekgest/internal/models"
)

func richiestaConSessione(sessione *auth.Session) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), SessionKey, sessione))
}

func TestRequireTecnicoRifiutaGuest(t *testing.T) {
	chiamato := false
	h := RequireTecnico(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chiamato = true
	}))

	sessione := &auth.Session{
		Username:  "ospite",
		Ruolo:     models.RuoloGuest,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, richiestaConSessione(sessione))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, chiamato)
}

func TestRequireTecnicoAmmetteTecnico(t *testing.T) {
	chiamato := false
	h := RequireTecnico(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chiamato = true
	}))

	sessione := &auth.Session{
		Username:  "admin",
		Ruolo:     models.RuoloTecnico,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, richiestaConSessione(sessione))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, chiamato)
}

func TestRequireTecnicoSenzaSessione(t *testing.T) {
	h := RequireTecnico(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
