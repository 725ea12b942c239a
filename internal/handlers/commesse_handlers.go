package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"protekgest/internal/bolle"
	"protekgest/internal/commesse"
	"protekgest/internal/models"
)

// ListaCommesseHandler restituisce l'anagrafica riconciliata con il disco
func ListaCommesseHandler(w http.ResponseWriter, r *http.Request) {
	elenco, err := Commesse.Aggiorna(cartellaBase())
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura commesse: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, elenco)
}

// DettagliCommessaHandler restituisce una singola commessa per nome
func DettagliCommessaHandler(w http.ResponseWriter, r *http.Request) {
	nome := r.URL.Query().Get("nome")
	if nome == "" {
		rispondiErrore(w, http.StatusBadRequest, "parametro nome mancante")
		return
	}
	c, err := Commesse.Dettagli(cartellaBase(), nome)
	if err != nil {
		rispondiErrore(w, http.StatusNotFound, "%v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, c)
}

// SalvaCommessaHandler crea o aggiorna una commessa
func SalvaCommessaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var c models.Commessa
	if err := leggiJSON(r, &c); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	imp, err := Impostazioni.Carica()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura impostazioni: %v", err)
		return
	}
	if err := Commesse.Salva(imp.PercorsoCartella, imp.CartellaDaClonare, c); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CancellaCommessaHandler elimina la cartella della commessa e la sua voce
func CancellaCommessaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		Nome string `json:"nome"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := Commesse.Elimina(cartellaBase(), richiesta.Nome); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RinominaCartellaHandler rinomina la cartella di una commessa
func RinominaCartellaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		VecchioNome string `json:"vecchioNome"`
		NuovoNome   string `json:"nuovoNome"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := Commesse.Rinomina(cartellaBase(), richiesta.VecchioNome, richiesta.NuovoNome); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ReportHandler legge (GET) o aggiorna (POST) il report di una commessa.
// L'aggiornamento e' una fusione: i campi non inviati restano invariati.
func ReportHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		percorso := r.URL.Query().Get("folderPath")
		if percorso == "" {
			rispondiErrore(w, http.StatusBadRequest, "parametro folderPath mancante")
			return
		}
		report, err := commesse.LeggiReport(percorso)
		if err != nil {
			rispondiErrore(w, http.StatusInternalServerError, "errore lettura report: %v", err)
			return
		}
		rispondiJSON(w, http.StatusOK, report)

	case http.MethodPost:
		var richiesta struct {
			FolderPath string         `json:"folderPath"`
			Report     map[string]any `json:"report"`
		}
		if err := leggiJSON(r, &richiesta); err != nil {
			rispondiErrore(w, http.StatusBadRequest, "%v", err)
			return
		}
		if richiesta.FolderPath == "" {
			rispondiErrore(w, http.StatusBadRequest, "folderPath mancante")
			return
		}
		report, err := Commesse.AggiornaReport(richiesta.FolderPath, richiesta.Report)
		if err != nil {
			rispondiErrore(w, http.StatusInternalServerError, "errore salvataggio report: %v", err)
			return
		}
		rispondiJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})

	default:
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
	}
}

// ListaCartelleHandler elenca le cartelle commessa presenti nella base
func ListaCartelleHandler(w http.ResponseWriter, r *http.Request) {
	base := cartellaBase()
	if base == "" {
		rispondiJSON(w, http.StatusOK, []string{})
		return
	}
	voci, err := os.ReadDir(base)
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura cartella: %v", err)
		return
	}
	nomi := []string{}
	for _, voce := range voci {
		if voce.IsDir() && bolle.CartellaCommessaValida(voce.Name()) {
			nomi = append(nomi, voce.Name())
		}
	}
	rispondiJSON(w, http.StatusOK, nomi)
}

// ListaFileHandler elenca il contenuto di una cartella commessa
func ListaFileHandler(w http.ResponseWriter, r *http.Request) {
	percorso := r.URL.Query().Get("folderPath")
	if percorso == "" {
		rispondiErrore(w, http.StatusBadRequest, "parametro folderPath mancante")
		return
	}
	voci, err := os.ReadDir(percorso)
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura cartella: %v", err)
		return
	}
	type voceFile struct {
		Nome      string `json:"nome"`
		Directory bool   `json:"directory"`
		Percorso  string `json:"percorso"`
	}
	elenco := []voceFile{}
	for _, voce := range voci {
		elenco = append(elenco, voceFile{
			Nome:      voce.Name(),
			Directory: voce.IsDir(),
			Percorso:  filepath.Join(percorso, voce.Name()),
		})
	}
	rispondiJSON(w, http.StatusOK, elenco)
}

// MonitorFolderHandler imposta la cartella base delle commesse e forza
// subito una riconciliazione
func MonitorFolderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		FolderPath string `json:"folderPath"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if richiesta.FolderPath == "" {
		rispondiErrore(w, http.StatusBadRequest, "folderPath mancante")
		return
	}
	if info, err := os.Stat(richiesta.FolderPath); err != nil || !info.IsDir() {
		rispondiErrore(w, http.StatusBadRequest, "la cartella indicata non esiste")
		return
	}

	imp, err := Impostazioni.Carica()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura impostazioni: %v", err)
		return
	}
	imp.PercorsoCartella = richiesta.FolderPath
	if err := Impostazioni.Salva(imp); err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore salvataggio impostazioni: %v", err)
		return
	}

	elenco, err := Commesse.Aggiorna(richiesta.FolderPath)
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore riconciliazione: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{"success": true, "commesse": elenco})
}
