package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaricaFileMancante(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "impostazioni.json"))

	imp, err := s.Carica()
	require.NoError(t, err)
	assert.Equal(t, Impostazioni{}, imp)
}

func TestSalvaECarica(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "impostazioni.json"))

	imp := Impostazioni{
		PercorsoCartella:         "/archivio/commesse",
		CartellaDaClonare:        "/archivio/modello",
		MasterBolleUscita:        "/archivio/master_t.pdf",
		MasterBolleEntrata:       "/archivio/master_w.pdf",
		ReportDdtPath:            "/archivio/registri",
		DebounceAutoBollaSecondi: 20,
	}
	require.NoError(t, s.Salva(imp))

	riletta, err := s.Carica()
	require.NoError(t, err)
	assert.Equal(t, imp, riletta)
}

func TestSalvaCreaLaCartella(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annidata", "impostazioni.json")
	s := NewStore(path)

	require.NoError(t, s.Salva(Impostazioni{PercorsoCartella: "/x"}))
	assert.FileExists(t, path)

	// la scrittura e' atomica: nessun file temporaneo residuo
	voci, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, voci, 1)
}

func TestCaricaFileCorrotto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impostazioni.json")
	require.NoError(t, os.WriteFile(path, []byte("{rotto"), 0644))

	_, err := NewStore(path).Carica()
	assert.Error(t, err)
}
