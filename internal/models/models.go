package models

import (
	"time"
)

// Ruolo utente
type Ruolo string

const (
	RuoloTecnico Ruolo = "tecnico"
	RuoloGuest   Ruolo = "guest"
)

// Utente rappresenta un utente del sistema
type Utente struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Non esporre la password in JSON
	Nome      string    `json:"nome"`
	Cognome   string    `json:"cognome"`
	Email     string    `json:"email"`
	Ruolo     Ruolo     `json:"ruolo"`
	Attivo    bool      `json:"attivo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Commessa rappresenta una commessa di produzione: una cartella
// "codiceProgetto_nomeProdotto_quantita_codiceCommessa" sotto il
// percorso archivio configurato.
type Commessa struct {
	Nome           string `json:"nome"`
	Cliente        string `json:"cliente"`
	Brand          string `json:"brand"`
	NomeProdotto   string `json:"nomeProdotto"`
	Quantita       string `json:"quantita"`
	CodiceProgetto string `json:"codiceProgetto"`
	CodiceCommessa string `json:"codiceCommessa"`
	DataConsegna   string `json:"dataConsegna"`
	Presente       bool   `json:"presente"`
	Archiviata     bool   `json:"archiviata"`
	Percorso       string `json:"percorso"`
	// Campi specchiati dal report.json della cartella
	InizioProduzione        string `json:"inizioProduzione,omitempty"`
	FineProduzioneEffettiva string `json:"fineProduzioneEffettiva,omitempty"`
}

// Bancale di una consegna (usato per il conteggio colli)
type Bancale struct {
	QuantiBancali int `json:"quantiBancali"`
}

// Consegna registrata in report.json
type Consegna struct {
	Bancali []Bancale `json:"bancali"`
}

// RigaRegistro e' una riga del registro DDT mensile (foglio Excel)
type RigaRegistro struct {
	DataEntrata    string // dd/mm/yyyy
	NumeroEntrata  string // es. "0042W"
	CodiceCommessa string // es. "C8888-11"
	NomeCommessa   string // nome visivo (segmento del nome cartella)
	Quantita       string
	Colli          string
	NumeroUscita   string // es. "0041T", vuoto se assente
	DataUscita     string
	PercorsoPDF    string // hyperlink alla bolla di entrata
	OreLavorazione string
	PrezzoVendita  float64
}
