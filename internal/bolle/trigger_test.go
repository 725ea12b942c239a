package bolle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type raccoltaEmissioni struct {
	mu       sync.Mutex
	percorsi []string
	pronto   chan struct{}
}

func (r *raccoltaEmissioni) emetti(percorso string) {
	r.mu.Lock()
	r.percorsi = append(r.percorsi, percorso)
	r.mu.Unlock()
	r.pronto <- struct{}{}
}

func (r *raccoltaEmissioni) totale() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.percorsi)
}

func nuovoTriggerDiProva() (*TriggerAutomatico, *raccoltaEmissioni, *time.Time) {
	raccolta := &raccoltaEmissioni{pronto: make(chan struct{}, 16)}
	adesso := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	trigger := NewTriggerAutomatico(15*time.Second, raccolta.emetti)
	trigger.Ora = func() time.Time { return adesso }
	return trigger, raccolta, &adesso
}

func attendi(t *testing.T, raccolta *raccoltaEmissioni) {
	t.Helper()
	select {
	case <-raccolta.pronto:
	case <-time.After(2 * time.Second):
		t.Fatal("emissione mai partita")
	}
}

func TestTriggerEmetteUnaVolta(t *testing.T) {
	trigger, raccolta, _ := nuovoTriggerDiProva()

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	attendi(t, raccolta)

	// richieste ravvicinate sulla stessa cartella vengono assorbite
	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")

	assert.Equal(t, 1, raccolta.totale())
}

func TestTriggerCartelleDiverse(t *testing.T) {
	trigger, raccolta, _ := nuovoTriggerDiProva()

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	attendi(t, raccolta)
	trigger.CommessaArchiviata("/archivio/P02_Tavolo_5_C002")
	attendi(t, raccolta)

	assert.Equal(t, 2, raccolta.totale())
}

func TestTriggerDopoLaFinestra(t *testing.T) {
	trigger, raccolta, adesso := nuovoTriggerDiProva()

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	attendi(t, raccolta)

	*adesso = adesso.Add(16 * time.Second)

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	attendi(t, raccolta)

	assert.Equal(t, 2, raccolta.totale())
}

func TestTriggerEntroLaFinestra(t *testing.T) {
	trigger, raccolta, adesso := nuovoTriggerDiProva()

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	attendi(t, raccolta)

	*adesso = adesso.Add(14 * time.Second)

	trigger.CommessaArchiviata("/archivio/P01_Sedia_10_C001")
	assert.Equal(t, 1, raccolta.totale())
}
