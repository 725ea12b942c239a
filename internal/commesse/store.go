package commesse

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"protekgest/internal/bolle"
	"protekgest/internal/models"
)

// Store gestisce l'anagrafica delle commesse: la verita' sono le cartelle
// su disco, commesse.json conserva i campi che la cartella non porta con se'
// (cliente, brand, date) e ricorda le commesse le cui cartelle sono sparite.
type Store struct {
	// DataDir ospita commesse.json
	DataDir string
	// OnArchiviata viene chiamata quando il report di una commessa
	// passa da non archiviata ad archiviata
	OnArchiviata func(percorsoCartella string)

	mu         sync.Mutex
	ultimoHash string
	stop       chan struct{}
}

func NewStore(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

func (s *Store) fileCommesse() string {
	return filepath.Join(s.DataDir, "commesse.json")
}

// Aggiorna riconcilia commesse.json con le cartelle presenti in baseDir e
// restituisce l'elenco aggiornato. Le commesse senza cartella restano in
// elenco con Presente a false. Il file viene riscritto solo se cambiato.
func (s *Store) Aggiorna(baseDir string) ([]models.Commessa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	esistenti := s.caricaMappa()

	trovate := map[string]bool{}
	if baseDir != "" {
		voci, err := os.ReadDir(baseDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("errore lettura cartella commesse: %w", err)
		}
		for _, voce := range voci {
			if !voce.IsDir() || !bolle.CartellaCommessaValida(voce.Name()) {
				continue
			}
			nome := voce.Name()
			trovate[nome] = true

			c := esistenti[nome]
			c.Nome = nome
			c.Presente = true
			c.Percorso = filepath.Join(baseDir, nome)
			completaDaNome(&c)
			arricchisciDaReport(&c)
			esistenti[nome] = c
		}
	}

	for nome, c := range esistenti {
		if !trovate[nome] {
			c.Presente = false
			esistenti[nome] = c
		}
	}

	elenco := make([]models.Commessa, 0, len(esistenti))
	for _, c := range esistenti {
		elenco = append(elenco, c)
	}
	sort.Slice(elenco, func(i, j int) bool { return elenco[i].Nome < elenco[j].Nome })

	if err := s.salvaSeCambiato(elenco); err != nil {
		return nil, err
	}
	return elenco, nil
}

// Dettagli restituisce la commessa con il nome dato
func (s *Store) Dettagli(baseDir, nome string) (*models.Commessa, error) {
	elenco, err := s.Aggiorna(baseDir)
	if err != nil {
		return nil, err
	}
	for i := range elenco {
		if elenco[i].Nome == nome {
			return &elenco[i], nil
		}
	}
	return nil, fmt.Errorf("commessa %q non trovata", nome)
}

// Salva crea o aggiorna una commessa. Se la cartella non esiste viene creata,
// clonando il modello se indicato, altrimenti con la sola sottocartella
// MATERIALI.
func (s *Store) Salva(baseDir, cartellaDaClonare string, c models.Commessa) error {
	if c.Nome == "" {
		return fmt.Errorf("nome commessa mancante")
	}
	if !bolle.CartellaCommessaValida(c.Nome) {
		return fmt.Errorf("nome commessa %q non valido: atteso codice_nome_quantita_codice", c.Nome)
	}
	if baseDir == "" {
		return fmt.Errorf("cartella base delle commesse non configurata")
	}

	percorso := filepath.Join(baseDir, c.Nome)
	if _, err := os.Stat(percorso); os.IsNotExist(err) {
		if cartellaDaClonare != "" {
			if err := copiaAlbero(cartellaDaClonare, percorso); err != nil {
				return fmt.Errorf("errore clonazione modello commessa: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Join(percorso, "MATERIALI"), 0755); err != nil {
			return fmt.Errorf("errore creazione cartella commessa: %w", err)
		}
	}

	s.mu.Lock()
	esistenti := s.caricaMappa()
	prec := esistenti[c.Nome]
	c.Presente = true
	c.Percorso = percorso
	completaDaNome(&c)
	if c.Cliente == "" {
		c.Cliente = prec.Cliente
	}
	if c.Brand == "" {
		c.Brand = prec.Brand
	}
	if c.DataConsegna == "" {
		c.DataConsegna = prec.DataConsegna
	}
	esistenti[c.Nome] = c
	err := s.salvaMappa(esistenti)
	s.mu.Unlock()
	return err
}

// Elimina rimuove la cartella della commessa e la sua voce in anagrafica
func (s *Store) Elimina(baseDir, nome string) error {
	if !bolle.CartellaCommessaValida(nome) {
		return fmt.Errorf("nome commessa %q non valido", nome)
	}
	if baseDir != "" {
		if err := os.RemoveAll(filepath.Join(baseDir, nome)); err != nil {
			return fmt.Errorf("errore rimozione cartella: %w", err)
		}
	}
	s.mu.Lock()
	esistenti := s.caricaMappa()
	delete(esistenti, nome)
	err := s.salvaMappa(esistenti)
	s.mu.Unlock()
	return err
}

// Rinomina cambia nome alla cartella della commessa e aggiorna l'anagrafica
func (s *Store) Rinomina(baseDir, vecchio, nuovo string) error {
	if !bolle.CartellaCommessaValida(nuovo) {
		return fmt.Errorf("nuovo nome %q non valido", nuovo)
	}
	if baseDir == "" {
		return fmt.Errorf("cartella base delle commesse non configurata")
	}
	if err := os.Rename(filepath.Join(baseDir, vecchio), filepath.Join(baseDir, nuovo)); err != nil {
		return fmt.Errorf("errore rinomina cartella: %w", err)
	}
	s.mu.Lock()
	esistenti := s.caricaMappa()
	if c, ok := esistenti[vecchio]; ok {
		delete(esistenti, vecchio)
		c.Nome = nuovo
		c.Percorso = filepath.Join(baseDir, nuovo)
		completaDaNome(&c)
		esistenti[nuovo] = c
	}
	err := s.salvaMappa(esistenti)
	s.mu.Unlock()
	return err
}

// AvviaMonitor riconcilia periodicamente l'anagrafica con il disco,
// per accorgersi di cartelle create o rimosse fuori dall'applicazione.
func (s *Store) AvviaMonitor(intervallo time.Duration, baseDir func() string) {
	if intervallo <= 0 {
		intervallo = 30 * time.Second
	}
	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(intervallo)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if dir := baseDir(); dir != "" {
					s.Aggiorna(dir)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// FermaMonitor arresta il riconciliatore periodico
func (s *Store) FermaMonitor() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Store) caricaMappa() map[string]models.Commessa {
	mappa := map[string]models.Commessa{}
	dati, err := os.ReadFile(s.fileCommesse())
	if err != nil {
		return mappa
	}
	var elenco []models.Commessa
	if err := json.Unmarshal(dati, &elenco); err != nil {
		return mappa
	}
	for _, c := range elenco {
		mappa[c.Nome] = c
	}
	return mappa
}

func (s *Store) salvaMappa(mappa map[string]models.Commessa) error {
	elenco := make([]models.Commessa, 0, len(mappa))
	for _, c := range mappa {
		elenco = append(elenco, c)
	}
	sort.Slice(elenco, func(i, j int) bool { return elenco[i].Nome < elenco[j].Nome })
	s.ultimoHash = ""
	return s.salvaSeCambiato(elenco)
}

// salvaSeCambiato riscrive commesse.json solo se il contenuto e' diverso
// dall'ultima scrittura. Scrittura atomica con file temporaneo.
func (s *Store) salvaSeCambiato(elenco []models.Commessa) error {
	dati, err := json.MarshalIndent(elenco, "", "  ")
	if err != nil {
		return err
	}
	hash := md5.Sum(dati)
	firma := hex.EncodeToString(hash[:])
	if firma == s.ultimoHash {
		return nil
	}
	if err := os.MkdirAll(s.DataDir, 0755); err != nil {
		return err
	}
	tmp := s.fileCommesse() + ".tmp"
	if err := os.WriteFile(tmp, dati, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.fileCommesse()); err != nil {
		os.Remove(tmp)
		return err
	}
	s.ultimoHash = firma
	return nil
}

// completaDaNome ricava dal nome cartella i campi strutturali
// (codiceProgetto_nomeProdotto_quantita_codiceCommessa)
func completaDaNome(c *models.Commessa) {
	parti := strings.SplitN(c.Nome, "_", 4)
	if len(parti) != 4 {
		return
	}
	c.CodiceProgetto = parti[0]
	c.NomeProdotto = parti[1]
	c.Quantita = parti[2]
	c.CodiceCommessa = NormalizzaCodice(parti[3])
}

// arricchisciDaReport riporta sull'anagrafica lo stato salvato nel report
// della commessa
func arricchisciDaReport(c *models.Commessa) {
	report, err := LeggiReport(c.Percorso)
	if err != nil {
		return
	}
	c.Archiviata = veroOFalso(report["archiviata"])
	if v := comeStringa(report["inizioProduzione"]); v != "" {
		c.InizioProduzione = v
	}
	if v := comeStringa(report["fineProduzioneEffettiva"]); v != "" {
		c.FineProduzioneEffettiva = v
	}
}

// LeggiReport carica il report.json della commessa.
// Un report mancante equivale a un report vuoto.
func LeggiReport(percorsoCartella string) (map[string]any, error) {
	dati, err := os.ReadFile(filepath.Join(percorsoCartella, "report.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var report map[string]any
	if err := json.Unmarshal(dati, &report); err != nil {
		return nil, fmt.Errorf("report.json corrotto: %w", err)
	}
	if report == nil {
		report = map[string]any{}
	}
	return report, nil
}

// AggiornaReport fonde le modifiche nel report della commessa e lo riscrive.
// Se la fusione porta archiviata da falso a vero scatta OnArchiviata:
// la notifica non blocca ne' invalida il salvataggio.
func (s *Store) AggiornaReport(percorsoCartella string, modifiche map[string]any) (map[string]any, error) {
	if _, err := os.Stat(percorsoCartella); err != nil {
		return nil, fmt.Errorf("cartella commessa non accessibile: %w", err)
	}

	report, err := LeggiReport(percorsoCartella)
	if err != nil {
		return nil, err
	}
	eraArchiviata := veroOFalso(report["archiviata"])

	for k, v := range modifiche {
		report[k] = v
	}

	dati, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(percorsoCartella, "report.json")
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, dati, 0644); err != nil {
		return nil, fmt.Errorf("errore scrittura report: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("errore salvataggio report: %w", err)
	}

	if !eraArchiviata && veroOFalso(report["archiviata"]) && s.OnArchiviata != nil {
		s.OnArchiviata(percorsoCartella)
	}
	return report, nil
}

// Risolvi raccoglie dal report e dal nome cartella i dati che servono
// all'emissione della bolla di entrata.
func Risolvi(percorsoCartella string) (bolle.DatiCommessa, error) {
	report, err := LeggiReport(percorsoCartella)
	if err != nil {
		return bolle.DatiCommessa{}, err
	}

	nome := filepath.Base(percorsoCartella)
	parti := strings.SplitN(nome, "_", 4)

	dati := bolle.DatiCommessa{
		Percorso:       percorsoCartella,
		CodiceVisivo:   codiceDaReport(report, nome),
		Quantita:       comeStringa(report["quantita"]),
		Colli:          contaColli(report),
		OreLavorazione: comeStringa(report["oreLavorazione"]),
		PrezzoVendita:  comeFloat(report["prezzoVendita"]),
	}
	if len(parti) == 4 {
		dati.Nome = parti[1]
		if dati.Quantita == "" {
			dati.Quantita = parti[2]
		}
	}
	return dati, nil
}

// CodiceVisivo restituisce il codice commessa mostrato sui documenti:
// quello dichiarato nel report se c'e', altrimenti il suffisso della cartella.
func CodiceVisivo(percorsoCartella string) string {
	report, err := LeggiReport(percorsoCartella)
	if err != nil {
		report = map[string]any{}
	}
	return codiceDaReport(report, filepath.Base(percorsoCartella))
}

func codiceDaReport(report map[string]any, nomeCartella string) string {
	if codice := NormalizzaCodice(comeStringa(report["codiceCommessa"])); codice != "" {
		return codice
	}
	parti := strings.Split(nomeCartella, "_")
	if len(parti) >= 2 {
		return NormalizzaCodice(parti[len(parti)-1])
	}
	return ""
}

var codiceAmmesso = regexp.MustCompile(`[^A-Za-z0-9-]`)

// NormalizzaCodice riduce il codice commessa alla forma canonica C seguita
// da alfanumerici e trattini.
func NormalizzaCodice(grezzo string) string {
	pulito := codiceAmmesso.ReplaceAllString(strings.TrimSpace(grezzo), "")
	if pulito == "" {
		return ""
	}
	if pulito[0] == 'c' || pulito[0] == 'C' {
		return "C" + pulito[1:]
	}
	return "C" + pulito
}

// contaColli somma i bancali dichiarati nelle consegne del report
func contaColli(report map[string]any) string {
	grezzo, ok := report["consegne"]
	if !ok {
		return ""
	}
	dati, err := json.Marshal(grezzo)
	if err != nil {
		return ""
	}
	var consegne []models.Consegna
	if err := json.Unmarshal(dati, &consegne); err != nil {
		return ""
	}
	totale := 0
	for _, consegna := range consegne {
		for _, bancale := range consegna.Bancali {
			totale += bancale.QuantiBancali
		}
	}
	if totale <= 0 {
		return ""
	}
	return strconv.Itoa(totale)
}

func veroOFalso(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1" || x == "si"
	case float64:
		return x != 0
	}
	return false
}

func comeStringa(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func comeFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", "."), 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// copiaAlbero replica ricorsivamente la cartella modello nella destinazione
func copiaAlbero(sorgente, destinazione string) error {
	return filepath.WalkDir(sorgente, func(percorso string, voce os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relativo, err := filepath.Rel(sorgente, percorso)
		if err != nil {
			return err
		}
		dest := filepath.Join(destinazione, relativo)
		if voce.IsDir() {
			return os.MkdirAll(dest, 0755)
		}
		src, err := os.Open(percorso)
		if err != nil {
			return err
		}
		defer src.Close()
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
