package bolle

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// CampiBolla sono i valori da riportare sul modulo PDF della bolla
type CampiBolla struct {
	NumeroDocumento string // es. "0042W"
	DataDocumento   string // dd/mm/yyyy
	Descrizione     string
	Quantita        string
	Colli           string
	NsDDT           string // riferimento alla bolla T, es. "0041T"
	DelData         string // data della bolla T
	DataTrasporto   string
	DataRitiro      string
}

// Compositore produce il PDF di una bolla compilando il modulo master
type Compositore interface {
	Componi(template []byte, campi CampiBolla) ([]byte, error)
}

// Parametri di adattamento del corpo del testo nei campi lunghi:
// si parte dal corpo massimo e si scende a passi finche' il testo
// non rientra nella larghezza del campo, senza scendere sotto il minimo.
const (
	corpoMassimo       = 14.0
	corpoMinimo        = 5.0
	passoCorpo         = 0.5
	margineCampo       = 4.0
	larghezzaFallback  = 220.0
	flagCampoMultiriga = 1 << 12
)

// CompositorePDF compila i campi AcroForm di un modulo PDF
type CompositorePDF struct{}

func NewCompositorePDF() *CompositorePDF {
	return &CompositorePDF{}
}

func (c *CompositorePDF) Componi(template []byte, campi CampiBolla) ([]byte, error) {
	if len(template) == 0 {
		return nil, errors.New("template bolla vuoto")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(template), conf)
	if err != nil {
		return nil, fmt.Errorf("errore lettura template PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("template PDF non valido: %w", err)
	}

	if err := c.compilaModulo(ctx, campi); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("errore serializzazione PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *CompositorePDF) compilaModulo(ctx *model.Context, campi CampiBolla) error {
	radice, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("errore lettura catalogo PDF: %w", err)
	}
	obj, ok := radice.Find("AcroForm")
	if !ok {
		return errors.New("il template PDF non contiene un modulo compilabile")
	}
	acro, err := ctx.DereferenceDict(obj)
	if err != nil || acro == nil {
		return errors.New("modulo PDF non leggibile")
	}
	if grezzo, trovato := acro.Find("Fields"); trovato {
		elenco, err := ctx.DereferenceArray(grezzo)
		if err != nil {
			return fmt.Errorf("errore lettura campi modulo: %w", err)
		}
		for _, o := range elenco {
			if err := c.compilaCampo(ctx, o, campi); err != nil {
				return err
			}
		}
	}

	// lasciamo al visualizzatore la rigenerazione degli aspetti
	acro["NeedAppearances"] = types.Boolean(true)
	return nil
}

func (c *CompositorePDF) compilaCampo(ctx *model.Context, o types.Object, campi CampiBolla) error {
	d, err := ctx.DereferenceDict(o)
	if err != nil || d == nil {
		return nil
	}

	if grezzo, trovato := d.Find("Kids"); trovato {
		if kids, err := ctx.DereferenceArray(grezzo); err == nil {
			for _, k := range kids {
				if err := c.compilaCampo(ctx, k, campi); err != nil {
					return err
				}
			}
		}
	}

	nome := nomeCampo(ctx, d)
	if nome == "" {
		return nil
	}
	valore, trovato := valorePerCampo(nome, campi)
	if !trovato {
		return nil
	}

	d["V"] = types.StringLiteral(valore)
	delete(d, "AP")

	if nome == "Descrizione" {
		corpo := corpoPerLarghezza(valore, larghezzaCampo(ctx, d))
		d["DA"] = types.StringLiteral(fmt.Sprintf("/Helv %.1f Tf 0 g", corpo))
		// la descrizione deve restare su una riga sola
		if ff := d.IntEntry("Ff"); ff != nil {
			d["Ff"] = types.Integer(*ff &^ flagCampoMultiriga)
		}
	}
	return nil
}

// valorePerCampo associa il nome di un campo del modulo al valore da scrivere.
// I nomi dei campi sono quelli del modulo master fornito dal cliente.
func valorePerCampo(nome string, campi CampiBolla) (string, bool) {
	minuscolo := strings.ToLower(nome)
	switch {
	case strings.Contains(minuscolo, "numero documento"):
		return campi.NumeroDocumento, true
	case strings.Contains(minuscolo, "data documento"):
		return campi.DataDocumento, true
	}
	switch nome {
	case "Descrizione":
		return campi.Descrizione, true
	case "qta":
		return campi.Quantita, true
	case "colli":
		return campi.Colli, true
	case "Ns DDT":
		return campi.NsDDT, true
	case "del":
		return campi.DelData, true
	case "Testo8":
		return campi.DataTrasporto, true
	case "Testo9":
		return campi.DataRitiro, true
	}
	if strings.Contains(minuscolo, "trasporto") {
		return campi.DataTrasporto, true
	}
	if strings.Contains(minuscolo, "ritiro") {
		return campi.DataRitiro, true
	}
	return "", false
}

// corpoPerLarghezza restituisce il corpo del carattere piu' grande, tra
// corpoMassimo e corpoMinimo, con cui il testo rientra nel campo al netto
// del margine.
func corpoPerLarghezza(testo string, larghezza float64) float64 {
	disponibile := larghezza - margineCampo
	corpo := corpoMassimo
	for corpo > corpoMinimo && larghezzaTesto(testo, corpo) > disponibile {
		corpo -= passoCorpo
	}
	return corpo
}

// larghezzaTesto misura il testo in Helvetica al corpo dato. La misura a
// corpo 100 viene riscalata per sostenere corpi frazionari.
func larghezzaTesto(testo string, corpo float64) float64 {
	return font.TextWidth(testo, "Helvetica", 100) * corpo / 100
}

// larghezzaCampo ricava la larghezza del rettangolo del widget;
// in mancanza usa un valore prudente.
func larghezzaCampo(ctx *model.Context, d types.Dict) float64 {
	grezzo, trovato := d.Find("Rect")
	if !trovato {
		return larghezzaFallback
	}
	arr, err := ctx.DereferenceArray(grezzo)
	if err != nil || len(arr) != 4 {
		return larghezzaFallback
	}
	x1, ok1 := numeroPDF(ctx, arr[0])
	x2, ok2 := numeroPDF(ctx, arr[2])
	if !ok1 || !ok2 {
		return larghezzaFallback
	}
	if w := math.Abs(x2 - x1); w > 0 {
		return w
	}
	return larghezzaFallback
}

func numeroPDF(ctx *model.Context, o types.Object) (float64, bool) {
	v, err := ctx.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case types.Integer:
		return float64(n), true
	case types.Float:
		return float64(n), true
	}
	return 0, false
}

func nomeCampo(ctx *model.Context, d types.Dict) string {
	o, ok := d.Find("T")
	if !ok {
		return ""
	}
	v, err := ctx.Dereference(o)
	if err != nil {
		return ""
	}
	switch s := v.(type) {
	case types.StringLiteral:
		if dec, err := types.StringLiteralToString(s); err == nil {
			return dec
		}
	case types.HexLiteral:
		if dec, err := types.HexLiteralToString(s); err == nil {
			return dec
		}
	}
	return ""
}
