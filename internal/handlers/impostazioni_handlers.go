package handlers

import (
	"net/http"

	"protekgest/internal/config"
)

// LeggiImpostazioniHandler restituisce le impostazioni correnti
func LeggiImpostazioniHandler(w http.ResponseWriter, r *http.Request) {
	imp, err := Impostazioni.Carica()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura impostazioni: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, imp)
}

// SalvaImpostazioniHandler sostituisce le impostazioni con quelle ricevute
func SalvaImpostazioniHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var imp config.Impostazioni
	if err := leggiJSON(r, &imp); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := Impostazioni.Salva(imp); err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore salvataggio impostazioni: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true, "impostazioni": imp})
}
