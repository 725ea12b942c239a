package bolle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creaFile(t *testing.T, dir string, nomi ...string) {
	t.Helper()
	for _, nome := range nomi {
		require.NoError(t, os.WriteFile(filepath.Join(dir, nome), []byte("pdf"), 0644))
	}
}

func TestEsisteOggi(t *testing.T) {
	dir := t.TempDir()
	oggi := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	creaFile(t, dir,
		"DDT_0007W_C123_31-08-2026.pdf",
		"DDT_0006W_C123_30-08-2026.pdf",
		"DDT_0005W_C999_31-08-2026.pdf",
	)

	nome, ok := EsisteOggi(dir, "C123", oggi)
	require.True(t, ok)
	assert.Equal(t, "DDT_0007W_C123_31-08-2026.pdf", nome)

	// altro codice o altra data non contano
	_, ok = EsisteOggi(dir, "C456", oggi)
	assert.False(t, ok)
	_, ok = EsisteOggi(dir, "C123", oggi.AddDate(0, 0, 1))
	assert.False(t, ok)
}

func TestEsisteOggiSeparatoriEMaiuscole(t *testing.T) {
	oggi := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	casi := []string{
		"DDT_0007W_C123_31_08_2026.pdf",
		"ddt_0007w_C123_31-08-2026.PDF",
	}
	for _, nome := range casi {
		dir := t.TempDir()
		creaFile(t, dir, nome)
		_, ok := EsisteOggi(dir, "C123", oggi)
		assert.True(t, ok, "deve riconoscere %s", nome)
	}
}

func TestUltimaUscita(t *testing.T) {
	dir := t.TempDir()
	creaFile(t, dir,
		"DDT_0003T_C123_10-01-2026.pdf",
		"DDT_0041T_C123_20-03-2026.pdf",
		"DDT_0050T_C999_25-03-2026.pdf",
		"DDT_0042W_C123_21-03-2026.pdf",
	)

	numero, data, ok := UltimaUscita(dir, "C123")
	require.True(t, ok)
	assert.Equal(t, "0041T", numero)
	assert.Equal(t, "20/03/2026", data)
}

func TestUltimaUscitaAssente(t *testing.T) {
	_, _, ok := UltimaUscita(t.TempDir(), "C123")
	assert.False(t, ok)
}

func TestMassimoSuDisco(t *testing.T) {
	base := t.TempDir()

	materiali := filepath.Join(base, "P01_Sedia_10_C001", "MATERIALI")
	require.NoError(t, os.MkdirAll(materiali, 0755))
	creaFile(t, materiali,
		"DDT_0012W_C001_10-02-2026.pdf",
		"DDT_0030T_C001_09-02-2026.pdf",
	)

	altra := filepath.Join(base, "P02_Tavolo_5_C002", "MATERIALI")
	require.NoError(t, os.MkdirAll(altra, 0755))
	creaFile(t, altra, "DDT_0025W_C002_11-02-2026.pdf")

	// cartelle fuori schema vengono ignorate
	fuori := filepath.Join(base, "varie", "MATERIALI")
	require.NoError(t, os.MkdirAll(fuori, 0755))
	creaFile(t, fuori, "DDT_0099W_CX_01-01-2026.pdf")

	n, err := MassimoSuDisco(base)(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = MassimoSuDisco(base)(TipoUscita)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}

func TestMassimoSuDiscoBaseInesistente(t *testing.T) {
	n, err := MassimoSuDisco("")(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = MassimoSuDisco(filepath.Join(t.TempDir(), "manca"))(TipoEntrata)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCartellaCommessaValida(t *testing.T) {
	assert.True(t, CartellaCommessaValida("P01_Sedia_10_C001"))
	assert.False(t, CartellaCommessaValida("P01_Sedia_10"))
	assert.False(t, CartellaCommessaValida("P01_Sedia_10_C001_extra"))
	assert.False(t, CartellaCommessaValida("varie"))
}
