package bolle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorpoPerLarghezzaTestoCorto(t *testing.T) {
	corpo := corpoPerLarghezza("0042W", 220)
	assert.Equal(t, corpoMassimo, corpo, "un testo corto resta al corpo massimo")
}

func TestCorpoPerLarghezzaSiRiduce(t *testing.T) {
	lungo := "Assembraggio P01_CucinaComponibileConAnte_120_C0042"
	corpo := corpoPerLarghezza(lungo, 220)
	assert.Less(t, corpo, corpoMassimo)
	assert.GreaterOrEqual(t, corpo, corpoMinimo)
}

func TestCorpoPerLarghezzaNonScendeSottoIlMinimo(t *testing.T) {
	esagerato := strings.Repeat("Assembraggio commessa molto lunga ", 20)
	corpo := corpoPerLarghezza(esagerato, 100)
	assert.Equal(t, corpoMinimo, corpo)
}

func TestValorePerCampo(t *testing.T) {
	campi := CampiBolla{
		NumeroDocumento: "0042W",
		DataDocumento:   "31/08/2026",
		Descrizione:     "Assembraggio P01_Sedia_10_C001",
		Quantita:        "10",
		Colli:           "3",
		NsDDT:           "0041T",
		DelData:         "20/03/2026",
		DataTrasporto:   "20/03/2026",
		DataRitiro:      "31/08/2026",
	}

	casi := map[string]string{
		"numero documento 1": "0042W",
		"Data Documento":     "31/08/2026",
		"Descrizione":        "Assembraggio P01_Sedia_10_C001",
		"qta":                "10",
		"colli":              "3",
		"Ns DDT":             "0041T",
		"del":                "20/03/2026",
		"Testo8":             "20/03/2026",
		"Testo9":             "31/08/2026",
		"data trasporto":     "20/03/2026",
		"ora ritiro":         "31/08/2026",
	}
	for nome, atteso := range casi {
		valore, ok := valorePerCampo(nome, campi)
		assert.True(t, ok, "campo %q deve essere riconosciuto", nome)
		assert.Equal(t, atteso, valore, "campo %q", nome)
	}

	_, ok := valorePerCampo("campo sconosciuto", campi)
	assert.False(t, ok)
}

func TestComponiRifiutaTemplateVuoto(t *testing.T) {
	c := NewCompositorePDF()
	_, err := c.Componi(nil, CampiBolla{})
	assert.Error(t, err)

	_, err = c.Componi([]byte("non un pdf"), CampiBolla{})
	assert.Error(t, err)
}
