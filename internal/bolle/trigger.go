package bolle

import (
	"log"
	"path/filepath"
	"sync"
	"time"
)

// FinestraTriggerDefault e' il tempo minimo tra due emissioni automatiche
// per la stessa commessa: assorbe i salvataggi ravvicinati del report.
const FinestraTriggerDefault = 15 * time.Second

// TriggerAutomatico emette la bolla W quando una commessa viene archiviata.
// Le richieste ravvicinate sulla stessa cartella vengono filtrate.
type TriggerAutomatico struct {
	Finestra time.Duration
	Emetti   func(percorsoCartella string)
	Ora      func() time.Time

	mu      sync.Mutex
	recenti map[string]time.Time
}

func NewTriggerAutomatico(finestra time.Duration, emetti func(string)) *TriggerAutomatico {
	if finestra <= 0 {
		finestra = FinestraTriggerDefault
	}
	return &TriggerAutomatico{
		Finestra: finestra,
		Emetti:   emetti,
		recenti:  make(map[string]time.Time),
	}
}

func (t *TriggerAutomatico) ora() time.Time {
	if t.Ora != nil {
		return t.Ora()
	}
	return time.Now()
}

// CommessaArchiviata va chiamata quando il report di una commessa passa ad
// archiviata. L'emissione parte in una goroutine; il fallimento viene solo
// loggato, il salvataggio del report non ne dipende.
func (t *TriggerAutomatico) CommessaArchiviata(percorsoCartella string) {
	if !t.ammetti(percorsoCartella) {
		log.Printf("[trigger] emissione W ignorata per %s: richiesta recente", percorsoCartella)
		return
	}
	log.Printf("[trigger] commessa archiviata, avvio emissione W per %s", percorsoCartella)
	go t.Emetti(percorsoCartella)
}

// ammetti registra il tentativo e dice se deve procedere: al massimo uno
// per cartella per finestra.
func (t *TriggerAutomatico) ammetti(percorso string) bool {
	abs, err := filepath.Abs(percorso)
	if err != nil {
		abs = percorso
	}
	adesso := t.ora()

	t.mu.Lock()
	defer t.mu.Unlock()

	if ultimo, ok := t.recenti[abs]; ok && adesso.Sub(ultimo) < t.Finestra {
		return false
	}
	t.recenti[abs] = adesso

	// ripulisce le voci scadute per non far crescere la mappa
	for k, v := range t.recenti {
		if adesso.Sub(v) >= t.Finestra {
			delete(t.recenti, k)
		}
	}
	return true
}
