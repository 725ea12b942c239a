package bolle

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"protekgest/internal/models"
)

// Esito di un tentativo di emissione bolla
type Esito int

const (
	// EsitoEmessa: la bolla e' stata creata e il progressivo avanzato
	EsitoEmessa Esito = iota
	// EsitoDuplicata: per la commessa esiste gia' la bolla richiesta,
	// il progressivo resta invariato
	EsitoDuplicata
	// EsitoOccupata: un'altra emissione e' in corso sulla stessa risorsa
	EsitoOccupata
)

// DatiCommessa e' quanto l'emettitore deve sapere della commessa.
// La risoluzione (lettura report, codice visivo, conteggio colli)
// spetta al chiamante.
type DatiCommessa struct {
	Percorso       string
	Nome           string
	CodiceVisivo   string
	Quantita       string
	Colli          string
	OreLavorazione string
	PrezzoVendita  float64
}

// RisultatoEmissione descrive com'e' andata l'emissione di una bolla W
type RisultatoEmissione struct {
	Esito        Esito
	Numero       int
	NumeroDoc    string
	NomeFile     string
	Percorso     string
	Materiali    string
	DataDoc      string
	CodiceVisivo string
	Nota         string
}

// RisultatoUscita descrive l'avanzamento del progressivo T
type RisultatoUscita struct {
	Numero            int
	NumeroDoc         string
	DataTrasporto     string
	NomeFileSuggerito string
}

// Registro e' il libro mastro mensile delle bolle di entrata.
// La registrazione e' best effort: un errore non invalida l'emissione.
type Registro interface {
	Registra(riga models.RigaRegistro) error
}

// Emettitore orchestra l'emissione delle bolle: progressivi, lock,
// controllo duplicati, composizione PDF e registrazione.
type Emettitore struct {
	Progressivi *Progressivi
	Compositore Compositore
	Registro    Registro // facoltativo

	// DataDir ospita contatori, lock e log di audit
	DataDir string
	// PercorsoArchivio restituisce la cartella base delle commesse
	PercorsoArchivio func() string
	// TemplateEntrata carica il modulo PDF master delle bolle W
	TemplateEntrata func() ([]byte, error)
	// Ora e' iniettabile nei test; se nil vale time.Now
	Ora func() time.Time
}

func (e *Emettitore) ora() time.Time {
	if e.Ora != nil {
		return e.Ora()
	}
	return time.Now()
}

func (e *Emettitore) percorsoArchivio() string {
	if e.PercorsoArchivio == nil {
		return ""
	}
	return e.PercorsoArchivio()
}

// ProssimaUscita restituisce il prossimo numero T senza consumarlo,
// dopo aver riallineato il contatore con le bolle gia' su disco.
func (e *Emettitore) ProssimaUscita() (int, error) {
	if err := e.Progressivi.Sincronizza(TipoUscita, MassimoSuDisco(e.percorsoArchivio())); err != nil {
		log.Printf("[bolle] warning sincronizzazione T: %v", err)
	}
	return e.Progressivi.Prossimo(TipoUscita)
}

// ProssimaEntrata restituisce il prossimo numero W senza consumarlo
func (e *Emettitore) ProssimaEntrata() (int, error) {
	if err := e.Progressivi.Sincronizza(TipoEntrata, MassimoSuDisco(e.percorsoArchivio())); err != nil {
		log.Printf("[bolle] warning sincronizzazione W: %v", err)
	}
	return e.Progressivi.Prossimo(TipoEntrata)
}

// AvanzaUscita consuma il prossimo numero T. Il PDF della bolla di uscita
// viene compilato a mano dall'operatore: qui si assegna il numero, si
// suggerisce il nome file e si annota l'avanzamento nel log di audit.
func (e *Emettitore) AvanzaUscita(codiceVisivo string) (*RisultatoUscita, error) {
	numero, err := e.Progressivi.AvanzaSincronizzato(TipoUscita, MassimoSuDisco(e.percorsoArchivio()))
	if err != nil {
		return nil, err
	}

	oggi := e.ora()
	ris := &RisultatoUscita{
		Numero:        numero,
		NumeroDoc:     fmt.Sprintf("%04dT", numero),
		DataTrasporto: oggi.Format("02/01/2006"),
	}
	if codiceVisivo != "" {
		ris.NomeFileSuggerito = fmt.Sprintf("DDT_%04dT_%s_%s.pdf",
			numero, codiceVisivo, oggi.Format("02-01-2006"))
	}

	e.annotaAudit(fmt.Sprintf("AVANZA T -> %04d %s", numero, ris.NomeFileSuggerito))
	return ris, nil
}

// AvanzaEntrata consuma il prossimo numero W senza generare il PDF: serve
// quando la bolla viene prodotta a mano fuori dall'applicazione.
func (e *Emettitore) AvanzaEntrata() (int, error) {
	numero, err := e.Progressivi.AvanzaSincronizzato(TipoEntrata, MassimoSuDisco(e.percorsoArchivio()))
	if err != nil {
		return 0, err
	}
	e.annotaAudit(fmt.Sprintf("AVANZA W -> %04d", numero))
	return numero, nil
}

// EmettiEntrata genera la bolla W per la commessa: acquisisce il lock della
// cartella, controlla che non esista gia' una W odierna, riserva il numero,
// compila il PDF e lo scrive in MATERIALI in modo esclusivo. Il progressivo
// avanza solo a scrittura confermata.
func (e *Emettitore) EmettiEntrata(dati DatiCommessa) (*RisultatoEmissione, error) {
	if dati.Percorso == "" {
		return nil, errors.New("percorso commessa mancante")
	}
	if _, err := os.Stat(dati.Percorso); err != nil {
		return nil, fmt.Errorf("cartella commessa non accessibile: %w", err)
	}

	materiali := filepath.Join(dati.Percorso, "MATERIALI")
	if err := os.MkdirAll(materiali, 0755); err != nil {
		return nil, fmt.Errorf("errore creazione cartella MATERIALI: %w", err)
	}

	lock, err := LockCartella(e.DataDir, "w", dati.Percorso)
	if errors.Is(err, ErrOccupato) {
		return &RisultatoEmissione{
			Esito: EsitoOccupata,
			Nota:  "Generazione bolla gia' in corso per questa commessa",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	defer lock.Rilascia()

	if err := e.Progressivi.Sincronizza(TipoEntrata, MassimoSuDisco(e.percorsoArchivio())); err != nil {
		log.Printf("[bolle] warning sincronizzazione W: %v", err)
	}

	oggi := e.ora()
	dataDoc := oggi.Format("02/01/2006")

	if nome, ok := EsisteOggi(materiali, dati.CodiceVisivo, oggi); ok {
		return &RisultatoEmissione{
			Esito:        EsitoDuplicata,
			NomeFile:     nome,
			Percorso:     filepath.Join(materiali, nome),
			Materiali:    materiali,
			DataDoc:      dataDoc,
			CodiceVisivo: dati.CodiceVisivo,
			Nota:         "Bolla W odierna gia' presente per questa commessa",
		}, nil
	}

	template, err := e.TemplateEntrata()
	if err != nil {
		return nil, fmt.Errorf("modulo master bolla entrata non disponibile: %w", err)
	}

	prenotazione, err := e.Progressivi.Prenota(TipoEntrata)
	if errors.Is(err, ErrOccupato) {
		return &RisultatoEmissione{
			Esito: EsitoOccupata,
			Nota:  "Progressivo in aggiornamento, riprova tra pochi istanti",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	defer prenotazione.Annulla()

	numero := prenotazione.Numero
	numeroDoc := fmt.Sprintf("%04dW", numero)

	nsDdt, dataNs, _ := UltimaUscita(materiali, dati.CodiceVisivo)
	dataTrasporto := dataNs
	if dataTrasporto == "" {
		dataTrasporto = dataDoc
	}

	campi := CampiBolla{
		NumeroDocumento: numeroDoc,
		DataDocumento:   dataDoc,
		Descrizione:     "Assembraggio " + filepath.Base(dati.Percorso),
		Quantita:        dati.Quantita,
		Colli:           dati.Colli,
		NsDDT:           nsDdt,
		DelData:         dataNs,
		DataTrasporto:   dataTrasporto,
		DataRitiro:      dataDoc,
	}
	pdf, err := e.Compositore.Componi(template, campi)
	if err != nil {
		return nil, fmt.Errorf("errore composizione bolla: %w", err)
	}

	nomeFile := fmt.Sprintf("DDT_%04dW_%s_%s.pdf",
		numero, dati.CodiceVisivo, oggi.Format("02-01-2006"))
	percorso := filepath.Join(materiali, nomeFile)

	if err := ScriviEsclusivo(percorso, pdf); err != nil {
		if os.IsExist(err) {
			return &RisultatoEmissione{
				Esito:        EsitoDuplicata,
				NomeFile:     nomeFile,
				Percorso:     percorso,
				Materiali:    materiali,
				DataDoc:      dataDoc,
				CodiceVisivo: dati.CodiceVisivo,
				Nota:         "Bolla gia' presente: creazione concorrente rilevata",
			}, nil
		}
		return nil, fmt.Errorf("errore scrittura bolla: %w", err)
	}

	// il file c'e': solo adesso il progressivo avanza
	if err := prenotazione.Conferma(); err != nil {
		log.Printf("[bolle] ERRORE avanzamento progressivo W dopo %s: %v", nomeFile, err)
	}

	e.annotaAudit(fmt.Sprintf("EMESSA W %04d %s", numero, nomeFile))

	// la bolla e' scritta: la commessa torna disponibile prima
	// dell'aggiornamento del registro, che puo' essere lento
	lock.Rilascia()

	if e.Registro != nil {
		riga := models.RigaRegistro{
			DataEntrata:    dataDoc,
			NumeroEntrata:  numeroDoc,
			CodiceCommessa: dati.CodiceVisivo,
			NomeCommessa:   nomeTraUnderscore(filepath.Base(dati.Percorso), dati.Nome),
			Quantita:       dati.Quantita,
			Colli:          dati.Colli,
			NumeroUscita:   nsDdt,
			DataUscita:     dataNs,
			PercorsoPDF:    percorso,
			OreLavorazione: dati.OreLavorazione,
			PrezzoVendita:  dati.PrezzoVendita,
		}
		if err := e.Registro.Registra(riga); err != nil {
			log.Printf("[bolle] warning registro DDT: %v", err)
		}
	}

	return &RisultatoEmissione{
		Esito:        EsitoEmessa,
		Numero:       numero,
		NumeroDoc:    numeroDoc,
		NomeFile:     nomeFile,
		Percorso:     percorso,
		Materiali:    materiali,
		DataDoc:      dataDoc,
		CodiceVisivo: dati.CodiceVisivo,
	}, nil
}

// annotaAudit accoda una riga al log delle bolle. Best effort.
func (e *Emettitore) annotaAudit(msg string) {
	if e.DataDir == "" {
		return
	}
	f, err := os.OpenFile(filepath.Join(e.DataDir, "bolle.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[bolle] warning log audit: %v", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", e.ora().Format(time.RFC3339), msg)
}

// ScriviEsclusivo scrive il file fallendo se esiste gia' (O_EXCL).
// In caso di errore a meta' scrittura il file parziale viene rimosso.
func ScriviEsclusivo(percorso string, dati []byte) error {
	f, err := os.OpenFile(percorso, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(dati); err != nil {
		f.Close()
		os.Remove(percorso)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(percorso)
		return err
	}
	return f.Close()
}

// nomeTraUnderscore estrae il nome commessa dalla cartella
// (codiceProgetto_nome_quantita_codice); se fornito, usa quello esplicito.
func nomeTraUnderscore(cartella, esplicito string) string {
	if esplicito != "" {
		return esplicito
	}
	parti := strings.Split(cartella, "_")
	if len(parti) >= 2 {
		return parti[1]
	}
	return cartella
}
