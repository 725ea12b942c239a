package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"protekgest/internal/bolle"
	"protekgest/internal/commesse"
	"protekgest/internal/config"
)

// Dipendenze condivise dagli handler, impostate all'avvio
var (
	Emettitore   *bolle.Emettitore
	Commesse     *commesse.Store
	Impostazioni *config.Store
)

// Init collega gli handler ai servizi dell'applicazione
func Init(e *bolle.Emettitore, c *commesse.Store, i *config.Store) {
	Emettitore = e
	Commesse = c
	Impostazioni = i
}

// cartellaBase restituisce la cartella commesse configurata
func cartellaBase() string {
	imp, err := Impostazioni.Carica()
	if err != nil {
		log.Printf("[handlers] errore lettura impostazioni: %v", err)
		return ""
	}
	return imp.PercorsoCartella
}

func rispondiJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[handlers] errore serializzazione risposta: %v", err)
	}
}

func rispondiErrore(w http.ResponseWriter, status int, formato string, argomenti ...any) {
	rispondiJSON(w, status, map[string]any{
		"success": false,
		"error":   fmt.Sprintf(formato, argomenti...),
	})
}

func leggiJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("corpo della richiesta non valido: %w", err)
	}
	return nil
}
