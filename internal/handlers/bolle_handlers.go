package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"protekgest/internal/bolle"
	"protekgest/internal/commesse"
)

// ProssimaBollaHandler restituisce il prossimo numero T senza consumarlo
func ProssimaBollaHandler(w http.ResponseWriter, r *http.Request) {
	numero, err := Emettitore.ProssimaUscita()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura progressivo: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{
		"progressivo": numero,
		"numeroBolla": fmt.Sprintf("%04dT", numero),
	})
}

// AvanzaBollaHandler consuma il prossimo numero T e suggerisce il nome file
func AvanzaBollaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		FolderPath string `json:"folderPath"`
	}
	leggiJSON(r, &richiesta)

	codice := ""
	if richiesta.FolderPath != "" {
		codice = commesse.CodiceVisivo(richiesta.FolderPath)
	}

	ris, err := Emettitore.AvanzaUscita(codice)
	if errors.Is(err, bolle.ErrOccupato) {
		rispondiErrore(w, http.StatusLocked, "Progressivo in aggiornamento, riprova tra pochi istanti")
		return
	}
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore avanzamento progressivo: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{
		"progressivo":       ris.Numero,
		"numeroBolla":       ris.NumeroDoc,
		"dataTrasporto":     ris.DataTrasporto,
		"suggestedFileName": ris.NomeFileSuggerito,
	})
}

// ProssimaBollaEntrataHandler restituisce il prossimo numero W senza consumarlo
func ProssimaBollaEntrataHandler(w http.ResponseWriter, r *http.Request) {
	numero, err := Emettitore.ProssimaEntrata()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura progressivo: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{
		"progressivo": numero,
		"numeroBolla": fmt.Sprintf("%04dW", numero),
	})
}

// AvanzaBollaEntrataHandler consuma il prossimo numero W senza generare il
// PDF: serve quando la bolla viene prodotta a mano fuori dall'applicazione
func AvanzaBollaEntrataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	numero, err := Emettitore.AvanzaEntrata()
	if errors.Is(err, bolle.ErrOccupato) {
		rispondiErrore(w, http.StatusLocked, "Progressivo in aggiornamento, riprova tra pochi istanti")
		return
	}
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore avanzamento progressivo: %v", err)
		return
	}
	rispondiJSON(w, http.StatusOK, map[string]any{
		"progressivo": numero,
		"numeroBolla": fmt.Sprintf("%04dW", numero),
	})
}

// GeneraBollaEntrataHandler emette la bolla W per la commessa indicata
func GeneraBollaEntrataHandler(w http.ResponseWriter, r *http.Request) {
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

	dati, err := commesse.Risolvi(richiesta.FolderPath)
	if err != nil {
		rispondiErrore(w, http.StatusBadRequest, "errore lettura commessa: %v", err)
		return
	}

	ris, err := Emettitore.EmettiEntrata(dati)
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore emissione bolla: %v", err)
		return
	}

	switch ris.Esito {
	case bolle.EsitoOccupata:
		rispondiErrore(w, http.StatusLocked, "%s", ris.Nota)
	case bolle.EsitoDuplicata:
		rispondiJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"duplicate": true,
			"fileName":  ris.NomeFile,
			"savedTo":   ris.Percorso,
			"message":   ris.Nota,
		})
	default:
		rispondiJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"numeroBolla": ris.NumeroDoc,
			"fileName":    ris.NomeFile,
			"savedTo":     ris.Percorso,
			"data":        ris.DataDoc,
		})
	}
}

// MasterBollaHandler serve il modulo PDF master (entrata o uscita)
func MasterBollaHandler(w http.ResponseWriter, r *http.Request) {
	imp, err := Impostazioni.Carica()
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore lettura impostazioni: %v", err)
		return
	}
	percorso := imp.MasterBolleUscita
	if r.URL.Query().Get("tipo") == "entrata" {
		percorso = imp.MasterBolleEntrata
	}
	if percorso == "" {
		rispondiErrore(w, http.StatusNotFound, "modulo master non configurato")
		return
	}
	if _, err := os.Stat(percorso); err != nil {
		rispondiErrore(w, http.StatusNotFound, "modulo master non trovato: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, percorso)
}

// SalvaPDFReportHandler riceve dal client il PDF di una bolla compilata e lo
// deposita in MATERIALI. La scrittura e' protetta dal lock della cartella e
// non sovrascrive mai: una bolla W gia' presente per la giornata blocca il
// salvataggio.
func SalvaPDFReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		FolderPath string `json:"folderPath"`
		FileName   string `json:"fileName"`
		PdfBase64  string `json:"pdfBase64"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if richiesta.FolderPath == "" || richiesta.FileName == "" || richiesta.PdfBase64 == "" {
		rispondiErrore(w, http.StatusBadRequest, "folderPath, fileName e pdfBase64 sono obbligatori")
		return
	}
	if richiesta.FileName != filepath.Base(richiesta.FileName) {
		rispondiErrore(w, http.StatusBadRequest, "nome file non valido")
		return
	}

	contenuto, err := base64.StdEncoding.DecodeString(richiesta.PdfBase64)
	if err != nil {
		rispondiErrore(w, http.StatusBadRequest, "pdfBase64 non decodificabile: %v", err)
		return
	}

	lock, err := bolle.LockCartella(Emettitore.DataDir, "w", richiesta.FolderPath)
	if errors.Is(err, bolle.ErrOccupato) {
		rispondiErrore(w, http.StatusLocked, "Salvataggio gia' in corso per questa commessa")
		return
	}
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore acquisizione lock: %v", err)
		return
	}
	defer lock.Rilascia()

	materiali := filepath.Join(richiesta.FolderPath, "MATERIALI")
	if err := os.MkdirAll(materiali, 0755); err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore creazione cartella MATERIALI: %v", err)
		return
	}

	codice := commesse.CodiceVisivo(richiesta.FolderPath)
	if nome, ok := bolle.EsisteOggi(materiali, codice, time.Now()); ok {
		rispondiJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"duplicate": true,
			"fileName":  nome,
			"message":   "Bolla W odierna gia' presente: salvataggio non ripetuto",
		})
		return
	}

	destinazione := filepath.Join(materiali, richiesta.FileName)
	if err := bolle.ScriviEsclusivo(destinazione, contenuto); err != nil {
		if os.IsExist(err) {
			rispondiJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"duplicate": true,
				"fileName":  richiesta.FileName,
				"message":   "File gia' presente: salvataggio non ripetuto",
			})
			return
		}
		rispondiErrore(w, http.StatusInternalServerError, "errore scrittura file: %v", err)
		return
	}

	rispondiJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"fileName": richiesta.FileName,
		"savedTo":  destinazione,
	})
}

// SalvaExcelReportHandler deposita nella cartella della commessa un report
// Excel generato dal client. Come per i PDF la scrittura avviene sotto lock
// e in modo esclusivo: un file omonimo gia' presente non viene sovrascritto.
func SalvaExcelReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rispondiErrore(w, http.StatusMethodNotAllowed, "metodo non consentito")
		return
	}
	var richiesta struct {
		FolderPath  string `json:"folderPath"`
		FileName    string `json:"fileName"`
		ExcelBase64 string `json:"excelBase64"`
	}
	if err := leggiJSON(r, &richiesta); err != nil {
		rispondiErrore(w, http.StatusBadRequest, "%v", err)
		return
	}
	if richiesta.FolderPath == "" || richiesta.FileName == "" || richiesta.ExcelBase64 == "" {
		rispondiErrore(w, http.StatusBadRequest, "folderPath, fileName e excelBase64 sono obbligatori")
		return
	}
	if richiesta.FileName != filepath.Base(richiesta.FileName) {
		rispondiErrore(w, http.StatusBadRequest, "nome file non valido")
		return
	}

	contenuto, err := base64.StdEncoding.DecodeString(richiesta.ExcelBase64)
	if err != nil {
		rispondiErrore(w, http.StatusBadRequest, "excelBase64 non decodificabile: %v", err)
		return
	}

	lock, err := bolle.LockCartella(Emettitore.DataDir, "w", richiesta.FolderPath)
	if errors.Is(err, bolle.ErrOccupato) {
		rispondiErrore(w, http.StatusLocked, "Salvataggio gia' in corso per questa commessa")
		return
	}
	if err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore acquisizione lock: %v", err)
		return
	}
	defer lock.Rilascia()

	if err := os.MkdirAll(richiesta.FolderPath, 0755); err != nil {
		rispondiErrore(w, http.StatusInternalServerError, "errore creazione cartella: %v", err)
		return
	}

	destinazione := filepath.Join(richiesta.FolderPath, richiesta.FileName)
	if err := bolle.ScriviEsclusivo(destinazione, contenuto); err != nil {
		if os.IsExist(err) {
			rispondiJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"duplicate": true,
				"fileName":  richiesta.FileName,
				"message":   "File gia' presente: salvataggio non ripetuto",
			})
			return
		}
		rispondiErrore(w, http.StatusInternalServerError, "errore scrittura file: %v", err)
		return
	}

	rispondiJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"fileName": richiesta.FileName,
		"savedTo":  destinazione,
	})
}
