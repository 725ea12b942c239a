package excel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"protekgest/internal/models"
)

// prima riga dati del registro: sopra ci sono titolo e intestazioni
const primaRigaDati = 5

var mesiItaliani = []string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

// Registro mantiene i libri mastri mensili delle bolle di entrata:
// un file Excel per mese, creato dal modello DDT_Work.xlsx alla prima
// registrazione.
type Registro struct {
	// Dir restituisce la cartella dei registri (configurabile a caldo)
	Dir func() string
	Ora func() time.Time

	mu sync.Mutex
}

func NewRegistro(dir func() string) *Registro {
	return &Registro{Dir: dir}
}

func (r *Registro) ora() time.Time {
	if r.Ora != nil {
		return r.Ora()
	}
	return time.Now()
}

// Registra accoda la riga al registro del mese di competenza.
// Righe gia' presenti (stesso numero W o stesso PDF collegato)
// non vengono duplicate.
func (r *Registro) Registra(riga models.RigaRegistro) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.Dir()
	if dir == "" {
		return fmt.Errorf("cartella registri DDT non configurata")
	}

	mese, anno := r.meseAnno(riga.DataEntrata)
	percorso := filepath.Join(dir, fmt.Sprintf("DDT_Work_%02d_%04d.xlsx", mese, anno))

	if _, err := os.Stat(percorso); os.IsNotExist(err) {
		modello := filepath.Join(dir, "Template", "DDT_Work.xlsx")
		if err := copiaFile(modello, percorso); err != nil {
			return fmt.Errorf("modello registro non disponibile: %w", err)
		}
	}

	f, err := excelize.OpenFile(percorso)
	if err != nil {
		return fmt.Errorf("errore apertura registro %s: %w", percorso, err)
	}
	defer f.Close()

	foglio := f.GetSheetName(0)
	if foglio == "" {
		return fmt.Errorf("registro %s senza fogli", percorso)
	}

	f.SetCellValue(foglio, "A1", fmt.Sprintf("Registro DDT Work %s %d", mesiItaliani[mese-1], anno))

	righe, err := f.GetRows(foglio)
	if err != nil {
		return fmt.Errorf("errore lettura registro: %w", err)
	}

	libera := primaRigaDati
	for i := primaRigaDati - 1; i < len(righe); i++ {
		numRiga := i + 1
		numeroW, _ := f.GetCellValue(foglio, fmt.Sprintf("B%d", numRiga))
		if riga.NumeroEntrata != "" && strings.TrimSpace(numeroW) == riga.NumeroEntrata {
			return nil
		}
		if riga.PercorsoPDF != "" {
			if ok, link, _ := f.GetCellHyperLink(foglio, fmt.Sprintf("I%d", numRiga)); ok && link == riga.PercorsoPDF {
				return nil
			}
		}
		if cellaVuota(righe[i]) {
			continue
		}
		libera = numRiga + 1
	}

	r.scriviRiga(f, foglio, libera, riga)

	if err := f.Save(); err != nil {
		return fmt.Errorf("errore salvataggio registro: %w", err)
	}
	return nil
}

func (r *Registro) scriviRiga(f *excelize.File, foglio string, n int, riga models.RigaRegistro) {
	cella := func(colonna string) string { return fmt.Sprintf("%s%d", colonna, n) }

	f.SetCellValue(foglio, cella("A"), dataCorta(riga.DataEntrata))
	f.SetCellValue(foglio, cella("B"), riga.NumeroEntrata)
	f.SetCellValue(foglio, cella("C"), riga.CodiceCommessa)
	f.SetCellValue(foglio, cella("D"), riga.NomeCommessa)
	impostaNumero(f, foglio, cella("E"), riga.Quantita)
	impostaNumero(f, foglio, cella("F"), riga.Colli)
	f.SetCellValue(foglio, cella("G"), riga.NumeroUscita)
	f.SetCellValue(foglio, cella("H"), riga.DataUscita)

	if riga.PercorsoPDF != "" {
		f.SetCellHyperLink(foglio, cella("I"), riga.PercorsoPDF, "External")
		f.SetCellValue(foglio, cella("I"), "Apri")
	}

	impostaNumero(f, foglio, cella("J"), riga.OreLavorazione)
	f.SetCellFormula(foglio, cella("K"), fmt.Sprintf(`IF(E%d<>0,L%d/E%d,"")`, n, n, n))
	f.SetCellFormula(foglio, cella("L"), fmt.Sprintf("M%d*J%d", n, n))
	if riga.PrezzoVendita != 0 {
		f.SetCellValue(foglio, cella("N"), riga.PrezzoVendita)
	}

	if stile, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err == nil {
		f.SetCellStyle(foglio, cella("A"), cella("N"), stile)
	}
}

// meseAnno ricava mese e anno di competenza dalla data della bolla
// (dd/mm/yyyy); se illeggibile vale il mese corrente.
func (r *Registro) meseAnno(data string) (int, int) {
	parti := strings.Split(data, "/")
	if len(parti) == 3 {
		mese, err1 := strconv.Atoi(parti[1])
		anno, err2 := strconv.Atoi(parti[2])
		if err1 == nil && err2 == nil && mese >= 1 && mese <= 12 {
			return mese, anno
		}
	}
	adesso := r.ora()
	return int(adesso.Month()), adesso.Year()
}

// dataCorta converte dd/mm/yyyy in dd/mm/yy
func dataCorta(data string) string {
	parti := strings.Split(data, "/")
	if len(parti) == 3 && len(parti[2]) == 4 {
		return parti[0] + "/" + parti[1] + "/" + parti[2][2:]
	}
	return data
}

// impostaNumero scrive la cella come numero se il valore e' numerico,
// altrimenti come testo. La virgola decimale viene accettata.
func impostaNumero(f *excelize.File, foglio, cella, valore string) {
	valore = strings.TrimSpace(valore)
	if valore == "" {
		return
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(valore, ",", "."), 64); err == nil {
		f.SetCellValue(foglio, cella, n)
		return
	}
	f.SetCellValue(foglio, cella, valore)
}

func cellaVuota(riga []string) bool {
	for _, v := range riga {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func copiaFile(sorgente, destinazione string) error {
	src, err := os.Open(sorgente)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(destinazione), 0755); err != nil {
		return err
	}
	out, err := os.Create(destinazione)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(destinazione)
		return err
	}
	return out.Close()
}
