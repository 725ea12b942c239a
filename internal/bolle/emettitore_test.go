package bolle

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protekgest/internal/models"
)

// compositoreFinto registra i campi ricevuti e restituisce un PDF fittizio
type compositoreFinto struct {
	mu     sync.Mutex
	campi  []CampiBolla
	errore error
}

func (c *compositoreFinto) Componi(template []byte, campi CampiBolla) ([]byte, error) {
	c.mu.Lock()
	c.campi = append(c.campi, campi)
	c.mu.Unlock()
	if c.errore != nil {
		return nil, c.errore
	}
	return []byte("%PDF finto"), nil
}

type registroFinto struct {
	mu    sync.Mutex
	righe []models.RigaRegistro
}

func (r *registroFinto) Registra(riga models.RigaRegistro) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.righe = append(r.righe, riga)
	return nil
}

type bancoProva struct {
	emettitore  *Emettitore
	compositore *compositoreFinto
	registro    *registroFinto
	base        string
	commessa    string
	adesso      time.Time
}

func nuovoBanco(t *testing.T) *bancoProva {
	t.Helper()
	base := t.TempDir()
	commessa := filepath.Join(base, "P01_Sedia_10_C001")
	require.NoError(t, os.MkdirAll(commessa, 0755))

	banco := &bancoProva{
		compositore: &compositoreFinto{},
		registro:    &registroFinto{},
		base:        base,
		commessa:    commessa,
		adesso:      time.Date(2026, 3, 20, 9, 30, 0, 0, time.UTC),
	}
	banco.emettitore = &Emettitore{
		Progressivi:      NewProgressivi(t.TempDir()),
		Compositore:      banco.compositore,
		Registro:         banco.registro,
		DataDir:          t.TempDir(),
		PercorsoArchivio: func() string { return base },
		TemplateEntrata:  func() ([]byte, error) { return []byte("modulo"), nil },
		Ora:              func() time.Time { return banco.adesso },
	}
	return banco
}

func (b *bancoProva) dati() DatiCommessa {
	return DatiCommessa{
		Percorso:     b.commessa,
		CodiceVisivo: "C001",
		Quantita:     "10",
		Colli:        "3",
	}
}

func TestEmettiEntrata(t *testing.T) {
	banco := nuovoBanco(t)

	ris, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)

	assert.Equal(t, EsitoEmessa, ris.Esito)
	assert.Equal(t, "0001W", ris.NumeroDoc)
	assert.Equal(t, "DDT_0001W_C001_20-03-2026.pdf", ris.NomeFile)
	assert.Equal(t, "20/03/2026", ris.DataDoc)
	assert.FileExists(t, ris.Percorso)

	// il progressivo e' avanzato
	n, err := banco.emettitore.Progressivi.Prossimo(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// campi del modulo
	require.Len(t, banco.compositore.campi, 1)
	campi := banco.compositore.campi[0]
	assert.Equal(t, "0001W", campi.NumeroDocumento)
	assert.Equal(t, "Assembraggio P01_Sedia_10_C001", campi.Descrizione)
	assert.Equal(t, "10", campi.Quantita)
	assert.Equal(t, "3", campi.Colli)
	// senza bolla T di riferimento, la data trasporto ricade su oggi
	assert.Empty(t, campi.NsDDT)
	assert.Equal(t, "20/03/2026", campi.DataTrasporto)

	// registro alimentato
	require.Len(t, banco.registro.righe, 1)
	riga := banco.registro.righe[0]
	assert.Equal(t, "0001W", riga.NumeroEntrata)
	assert.Equal(t, "C001", riga.CodiceCommessa)
	assert.Equal(t, "Sedia", riga.NomeCommessa)
	assert.Equal(t, ris.Percorso, riga.PercorsoPDF)
}

func TestEmettiEntrataRiferimentoUscita(t *testing.T) {
	banco := nuovoBanco(t)
	materiali := filepath.Join(banco.commessa, "MATERIALI")
	require.NoError(t, os.MkdirAll(materiali, 0755))
	creaFile(t, materiali, "DDT_0041T_C001_10-03-2026.pdf")

	ris, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	assert.Equal(t, EsitoEmessa, ris.Esito)

	require.Len(t, banco.compositore.campi, 1)
	campi := banco.compositore.campi[0]
	assert.Equal(t, "0041T", campi.NsDDT)
	assert.Equal(t, "10/03/2026", campi.DelData)
	assert.Equal(t, "10/03/2026", campi.DataTrasporto)
	assert.Equal(t, "20/03/2026", campi.DataRitiro)
}

func TestEmettiEntrataDuplicataNelGiorno(t *testing.T) {
	banco := nuovoBanco(t)

	primo, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	require.Equal(t, EsitoEmessa, primo.Esito)

	secondo, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	assert.Equal(t, EsitoDuplicata, secondo.Esito)
	assert.Equal(t, primo.NomeFile, secondo.NomeFile)

	// il progressivo non si muove e non nasce un secondo file
	n, err := banco.emettitore.Progressivi.Prossimo(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	voci, err := os.ReadDir(primo.Materiali)
	require.NoError(t, err)
	assert.Len(t, voci, 1)
}

func TestEmettiEntrataGiornoSuccessivo(t *testing.T) {
	banco := nuovoBanco(t)

	primo, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	require.Equal(t, EsitoEmessa, primo.Esito)

	banco.adesso = banco.adesso.AddDate(0, 0, 1)

	secondo, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	assert.Equal(t, EsitoEmessa, secondo.Esito)
	assert.Equal(t, "0002W", secondo.NumeroDoc)
	assert.Equal(t, "DDT_0002W_C001_21-03-2026.pdf", secondo.NomeFile)
}

func TestEmettiEntrataConcorrente(t *testing.T) {
	banco := nuovoBanco(t)

	const tentativi = 5
	esiti := make([]Esito, 0, tentativi)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < tentativi; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ris, err := banco.emettitore.EmettiEntrata(banco.dati())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			esiti = append(esiti, ris.Esito)
			mu.Unlock()
		}()
	}
	wg.Wait()

	emesse := 0
	for _, esito := range esiti {
		if esito == EsitoEmessa {
			emesse++
		}
	}
	assert.Equal(t, 1, emesse, "una sola bolla deve nascere")

	voci, err := os.ReadDir(filepath.Join(banco.commessa, "MATERIALI"))
	require.NoError(t, err)
	assert.Len(t, voci, 1)
}

func TestEmettiEntrataComposizioneFallita(t *testing.T) {
	banco := nuovoBanco(t)
	banco.compositore.errore = errors.New("modulo illeggibile")

	_, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.Error(t, err)

	// nessun file parziale, progressivo fermo
	voci, err := os.ReadDir(filepath.Join(banco.commessa, "MATERIALI"))
	require.NoError(t, err)
	assert.Empty(t, voci)
	n, err := banco.emettitore.Progressivi.Prossimo(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmettiEntrataCartellaInesistente(t *testing.T) {
	banco := nuovoBanco(t)
	dati := banco.dati()
	dati.Percorso = filepath.Join(banco.base, "manca")

	_, err := banco.emettitore.EmettiEntrata(dati)
	assert.Error(t, err)
}

func TestAvanzaUscita(t *testing.T) {
	banco := nuovoBanco(t)

	ris, err := banco.emettitore.AvanzaUscita("C001")
	require.NoError(t, err)
	assert.Equal(t, 1, ris.Numero)
	assert.Equal(t, "0001T", ris.NumeroDoc)
	assert.Equal(t, "20/03/2026", ris.DataTrasporto)
	assert.Equal(t, "DDT_0001T_C001_20-03-2026.pdf", ris.NomeFileSuggerito)

	// il progressivo T avanza subito: il numero e' bruciato
	n, err := banco.emettitore.Progressivi.Prossimo(TipoUscita)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// l'avanzamento lascia traccia nel log di audit
	log, err := os.ReadFile(filepath.Join(banco.emettitore.DataDir, "bolle.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "AVANZA T -> 0001")
}

func TestAvanzaUscitaRiparteDalDisco(t *testing.T) {
	banco := nuovoBanco(t)
	materiali := filepath.Join(banco.commessa, "MATERIALI")
	require.NoError(t, os.MkdirAll(materiali, 0755))
	creaFile(t, materiali, "DDT_0042T_C001_10-03-2026.pdf")

	ris, err := banco.emettitore.AvanzaUscita("C001")
	require.NoError(t, err)
	assert.Equal(t, 43, ris.Numero, "il contatore si riallinea con le bolle esistenti")
}

// registroVerificaDisponibilita controlla che durante l'aggiornamento del
// registro la commessa non sia piu' bloccata
type registroVerificaDisponibilita struct {
	dataDir  string
	percorso string
	libera   bool
}

func (r *registroVerificaDisponibilita) Registra(models.RigaRegistro) error {
	lock, err := LockCartella(r.dataDir, "w", r.percorso)
	if err == nil {
		r.libera = true
		lock.Rilascia()
	}
	return err
}

func TestEmettiEntrataRilasciaLockPrimaDelRegistro(t *testing.T) {
	banco := nuovoBanco(t)
	verifica := &registroVerificaDisponibilita{
		dataDir:  banco.emettitore.DataDir,
		percorso: banco.commessa,
	}
	banco.emettitore.Registro = verifica

	ris, err := banco.emettitore.EmettiEntrata(banco.dati())
	require.NoError(t, err)
	require.Equal(t, EsitoEmessa, ris.Esito)
	assert.True(t, verifica.libera, "il lock della commessa va rilasciato prima del registro")
}

func TestAvanzaEntrata(t *testing.T) {
	banco := nuovoBanco(t)

	numero, err := banco.emettitore.AvanzaEntrata()
	require.NoError(t, err)
	assert.Equal(t, 1, numero)

	numero, err = banco.emettitore.AvanzaEntrata()
	require.NoError(t, err)
	assert.Equal(t, 2, numero)
}

func TestAvanzaEntrataRiparteDalDisco(t *testing.T) {
	banco := nuovoBanco(t)
	materiali := filepath.Join(banco.commessa, "MATERIALI")
	require.NoError(t, os.MkdirAll(materiali, 0755))
	creaFile(t, materiali, "DDT_0042W_C001_10-03-2026.pdf")

	numero, err := banco.emettitore.AvanzaEntrata()
	require.NoError(t, err)
	assert.Equal(t, 43, numero, "il contatore si riallinea con le bolle esistenti")
}

func TestAvanzaEntrataConcorrente(t *testing.T) {
	banco := nuovoBanco(t)
	materiali := filepath.Join(banco.commessa, "MATERIALI")
	require.NoError(t, os.MkdirAll(materiali, 0755))
	creaFile(t, materiali, "DDT_0010W_C001_10-03-2026.pdf")

	const richieste = 8
	var (
		mu     sync.Mutex
		numeri = map[int]bool{}
		wg     sync.WaitGroup
	)
	for i := 0; i < richieste; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				numero, err := banco.emettitore.AvanzaEntrata()
				if errors.Is(err, ErrOccupato) {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, numeri[numero], "numero %d assegnato due volte", numero)
				numeri[numero] = true
				mu.Unlock()
				return
			}
		}()
	}
	wg.Wait()

	assert.Len(t, numeri, richieste)
	for numero := range numeri {
		assert.GreaterOrEqual(t, numero, 11, "il riallineamento precede sempre l'assegnazione")
	}
}
