package bolle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Tipo distingue i due contatori progressivi delle bolle
type Tipo string

const (
	// TipoUscita numera i DDT emessi verso l'esterno (suffisso T)
	TipoUscita Tipo = "T"
	// TipoEntrata numera i DDT di rientro lavorazione (suffisso W)
	TipoEntrata Tipo = "W"
)

// nomeContatore restituisce il nome base del file contatore per il tipo
func nomeContatore(tipo Tipo) string {
	if tipo == TipoEntrata {
		return "bolle_in_entrata"
	}
	return "bolle_in_uscita"
}

// contatore e' il contenuto del file JSON di stato di un progressivo
type contatore struct {
	Progressivo int `json:"progressivo"`
}

// Progressivi gestisce i contatori persistenti delle bolle. Ogni tipo ha un
// file JSON con il prossimo numero da assegnare e un file di lock che
// serializza gli avanzamenti anche tra processi diversi.
type Progressivi struct {
	dataDir string
	mu      map[Tipo]*sync.Mutex
}

func NewProgressivi(dataDir string) *Progressivi {
	return &Progressivi{
		dataDir: dataDir,
		mu: map[Tipo]*sync.Mutex{
			TipoUscita:  {},
			TipoEntrata: {},
		},
	}
}

func (p *Progressivi) fileContatore(tipo Tipo) string {
	return filepath.Join(p.dataDir, nomeContatore(tipo)+".json")
}

func (p *Progressivi) fileLock(tipo Tipo) string {
	return filepath.Join(p.dataDir, nomeContatore(tipo)+".lock")
}

func (p *Progressivi) mutexPer(tipo Tipo) *sync.Mutex {
	if m, ok := p.mu[tipo]; ok {
		return m
	}
	return p.mu[TipoUscita]
}

// leggi restituisce il prossimo numero dal file contatore.
// File mancante o corrotto equivale a contatore nuovo: 1.
func (p *Progressivi) leggi(tipo Tipo) int {
	dati, err := os.ReadFile(p.fileContatore(tipo))
	if err != nil {
		return 1
	}
	var c contatore
	if err := json.Unmarshal(dati, &c); err != nil || c.Progressivo < 1 {
		return 1
	}
	return c.Progressivo
}

// salva scrive il valore del contatore in modo atomico (file temporaneo + rename)
func (p *Progressivi) salva(tipo Tipo, valore int) error {
	if err := os.MkdirAll(p.dataDir, 0755); err != nil {
		return fmt.Errorf("errore creazione directory dati: %w", err)
	}
	dati, err := json.MarshalIndent(contatore{Progressivo: valore}, "", "  ")
	if err != nil {
		return err
	}
	dest := p.fileContatore(tipo)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, dati, 0644); err != nil {
		return fmt.Errorf("errore scrittura contatore %s: %w", tipo, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("errore salvataggio contatore %s: %w", tipo, err)
	}
	return nil
}

// Prossimo restituisce il numero che verra' assegnato alla prossima bolla
// del tipo indicato, senza consumarlo.
func (p *Progressivi) Prossimo(tipo Tipo) (int, error) {
	return p.leggi(tipo), nil
}

// Prenotazione e' un numero progressivo riservato: tiene il lock del
// contatore finche' il chiamante non conferma (avanzando il contatore)
// o annulla (lasciando il contatore invariato).
type Prenotazione struct {
	Numero int

	p        *Progressivi
	tipo     Tipo
	lock     *Lock
	mu       *sync.Mutex
	chiusa   bool
	chiusaMu sync.Mutex
}

// Prenota blocca il contatore del tipo e restituisce il numero corrente.
// Se un altro processo sta gia' operando sul contatore restituisce ErrOccupato.
func (p *Progressivi) Prenota(tipo Tipo) (*Prenotazione, error) {
	m := p.mutexPer(tipo)
	m.Lock()
	l, err := AcquisisciLock(p.fileLock(tipo))
	if err != nil {
		m.Unlock()
		return nil, err
	}
	return &Prenotazione{
		Numero: p.leggi(tipo),
		p:      p,
		tipo:   tipo,
		lock:   l,
		mu:     m,
	}, nil
}

// Conferma avanza il contatore oltre il numero prenotato e rilascia il lock
func (pr *Prenotazione) Conferma() error {
	defer pr.rilascia()
	return pr.p.salva(pr.tipo, pr.Numero+1)
}

// Annulla rilascia il lock senza avanzare il contatore. Idempotente.
func (pr *Prenotazione) Annulla() {
	pr.rilascia()
}

func (pr *Prenotazione) rilascia() {
	pr.chiusaMu.Lock()
	defer pr.chiusaMu.Unlock()
	if pr.chiusa {
		return
	}
	pr.chiusa = true
	pr.lock.Rilascia()
	pr.mu.Unlock()
}

// Avanza consuma e restituisce il numero corrente del tipo indicato,
// incrementando il contatore persistente di uno.
func (p *Progressivi) Avanza(tipo Tipo) (int, error) {
	pr, err := p.Prenota(tipo)
	if err != nil {
		return 0, err
	}
	if err := pr.Conferma(); err != nil {
		return 0, err
	}
	return pr.Numero, nil
}

// AvanzaSincronizzato riallinea il contatore con le bolle su disco e consuma
// il numero risultante nella stessa sezione critica, cosi' la scansione e
// l'avanzamento non possono intrecciarsi con un altro chiamante.
func (p *Progressivi) AvanzaSincronizzato(tipo Tipo, scan Scanner) (int, error) {
	massimo, err := scan(tipo)
	if err != nil {
		return 0, fmt.Errorf("errore scansione bolle %s: %w", tipo, err)
	}
	pr, err := p.Prenota(tipo)
	if err != nil {
		return 0, err
	}
	if massimo+1 > pr.Numero {
		pr.Numero = massimo + 1
	}
	if err := pr.Conferma(); err != nil {
		return 0, err
	}
	return pr.Numero, nil
}

// Scanner enumera il numero piu' alto gia' emesso su disco per un tipo.
// Restituisce 0 se non esiste alcuna bolla.
type Scanner func(tipo Tipo) (int, error)

// Sincronizza riallinea il contatore con le bolle gia' presenti su disco:
// se il massimo trovato implica un prossimo numero maggiore di quello
// memorizzato, il contatore avanza. Non arretra mai.
func (p *Progressivi) Sincronizza(tipo Tipo, scan Scanner) error {
	massimo, err := scan(tipo)
	if err != nil {
		return fmt.Errorf("errore scansione bolle %s: %w", tipo, err)
	}
	pr, err := p.Prenota(tipo)
	if err != nil {
		return err
	}
	defer pr.Annulla()

	if massimo+1 > pr.Numero {
		return p.salva(tipo, massimo+1)
	}
	return nil
}
