package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Impostazioni generali dell'applicazione, persistite in impostazioni.json
// nella directory dati. I percorsi puntano tipicamente a condivisioni di rete.
type Impostazioni struct {
	PercorsoCartella   string `json:"percorsoCartella"`   // archivio delle cartelle commessa
	CartellaDaClonare  string `json:"cartellaDaClonare"`  // cartella modello per nuove commesse
	MasterBolleUscita  string `json:"masterBolleUscita"`  // PDF master bolla uscita (T)
	MasterBolleEntrata string `json:"masterBolleEntrata"` // PDF master bolla entrata (W)
	ReportDdtPath      string `json:"reportDdtPath"`      // cartella del registro DDT Excel

	// Finestra anti-doppio trigger per la generazione automatica della W (secondi)
	DebounceAutoBollaSecondi int `json:"debounceAutoBollaSecondi,omitempty"`
}

// Store carica e salva le impostazioni con scritture atomiche
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore crea uno store impostazioni sul file indicato
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path restituisce il percorso del file impostazioni
func (s *Store) Path() string {
	return s.path
}

// Carica legge le impostazioni; file assente restituisce valori vuoti
func (s *Store) Carica() (Impostazioni, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var imp Impostazioni
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return imp, nil
	}
	if err != nil {
		return imp, fmt.Errorf("errore lettura impostazioni: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &imp); err != nil {
			return imp, fmt.Errorf("errore parsing impostazioni: %w", err)
		}
	}
	return imp, nil
}

// Salva scrive le impostazioni in modo atomico (file temporaneo + rename)
func (s *Store) Salva(imp Impostazioni) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("errore creazione directory impostazioni: %w", err)
	}

	data, err := json.MarshalIndent(imp, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("errore scrittura impostazioni: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("errore salvataggio impostazioni: %w", err)
	}
	return nil
}
