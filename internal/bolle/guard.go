package bolle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

var (
	// cartella commessa: quattro segmenti separati da underscore
	patCartellaCommessa = regexp.MustCompile(`^[^_]+_[^_]+_[^_]+_[^_]+$`)

	patBollaUscita  = regexp.MustCompile(`(?i)^DDT_(\d{4})T_.*\.pdf$`)
	patBollaEntrata = regexp.MustCompile(`(?i)^DDT_(\d{4})W_.*\.pdf$`)
)

// CartellaCommessaValida riconosce i nomi cartella nel formato
// codiceProgetto_nomeCommessa_quantita_codiceCommessa.
func CartellaCommessaValida(nome string) bool {
	return patCartellaCommessa.MatchString(nome)
}

// MassimoSuDisco restituisce uno Scanner che cerca il numero di bolla piu'
// alto tra i PDF gia' presenti nelle sottocartelle MATERIALI delle commesse.
// Una base vuota o inesistente equivale a nessuna bolla emessa.
func MassimoSuDisco(baseDir string) Scanner {
	return func(tipo Tipo) (int, error) {
		if baseDir == "" {
			return 0, nil
		}
		voci, err := os.ReadDir(baseDir)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, err
		}
		pat := patBollaUscita
		if tipo == TipoEntrata {
			pat = patBollaEntrata
		}
		massimo := 0
		for _, voce := range voci {
			if !voce.IsDir() || !CartellaCommessaValida(voce.Name()) {
				continue
			}
			materiali := filepath.Join(baseDir, voce.Name(), "MATERIALI")
			file, err := os.ReadDir(materiali)
			if err != nil {
				continue
			}
			for _, f := range file {
				m := pat.FindStringSubmatch(f.Name())
				if m == nil {
					continue
				}
				if n, err := strconv.Atoi(m[1]); err == nil && n > massimo {
					massimo = n
				}
			}
		}
		return massimo, nil
	}
}

// EsisteOggi cerca nella cartella una bolla W gia' emessa nella data indicata
// per il codice commessa dato. I separatori della data nel nome file possono
// essere trattini o underscore. Restituisce il nome del file trovato.
func EsisteOggi(dir, codice string, giorno time.Time) (string, bool) {
	pat := regexp.MustCompile(fmt.Sprintf(
		`(?i)^DDT_\d{4}W_.*%s_%02d[-_]%02d[-_]%04d\.pdf$`,
		regexp.QuoteMeta(codice), giorno.Day(), int(giorno.Month()), giorno.Year(),
	))
	voci, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, voce := range voci {
		if !voce.IsDir() && pat.MatchString(voce.Name()) {
			return voce.Name(), true
		}
	}
	return "", false
}

// UltimaUscita cerca nella cartella il DDT T piu' recente (numero piu' alto)
// per il codice commessa dato. Restituisce numero documento ("0041T") e data
// in formato dd/mm/yyyy. Il riferimento e' facoltativo: ok e' false se non
// esiste alcuna bolla di uscita.
func UltimaUscita(dir, codice string) (numero, data string, ok bool) {
	pat := regexp.MustCompile(fmt.Sprintf(
		`(?i)^DDT_(\d{4})T_.*%s_(\d{2})[-_](\d{2})[-_](\d{4})\.pdf$`,
		regexp.QuoteMeta(codice),
	))
	voci, err := os.ReadDir(dir)
	if err != nil {
		return "", "", false
	}
	migliore := 0
	for _, voce := range voci {
		if voce.IsDir() {
			continue
		}
		m := pat.FindStringSubmatch(voce.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= migliore {
			continue
		}
		migliore = n
		numero = fmt.Sprintf("%04dT", n)
		data = fmt.Sprintf("%s/%s/%s", m[2], m[3], m[4])
	}
	return numero, data, migliore > 0
}
