package bolle

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrOccupato indica che la risorsa e' gia' bloccata da un'altra operazione
var ErrOccupato = errors.New("risorsa occupata: riprova tra pochi istanti")

// Un lock piu' vecchio di questa soglia e' considerato orfano (processo morto
// durante l'emissione) e viene rimosso: l'emissione e' un'operazione breve.
const lockStantio = 2 * time.Minute

// Lock e' un mutex basato su file, valido anche tra processi diversi
// che condividono il filesystem.
type Lock struct {
	path string
	f    *os.File
}

// AcquisisciLock crea il file di lock in modo atomico (O_EXCL).
// Non attende: se il lock e' gia' presente restituisce ErrOccupato,
// a meno che il file non sia stantio, nel qual caso viene rimosso
// e l'acquisizione ritentata una volta.
func AcquisisciLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("errore creazione directory lock: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		if !rimuoviSeStantio(path) {
			return nil, ErrOccupato
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			return nil, ErrOccupato
		}
	}
	if err != nil {
		return nil, fmt.Errorf("errore creazione lock %s: %w", path, err)
	}

	// pid e istante: utili a un operatore per capire chi tiene il lock
	fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))

	return &Lock{path: path, f: f}, nil
}

// LockCartella acquisisce il lock per una cartella commessa: il nome del file
// e' l'hash del percorso assoluto, con un prefisso per distinguere l'operazione.
func LockCartella(dataDir, prefisso, percorsoCartella string) (*Lock, error) {
	abs, err := filepath.Abs(percorsoCartella)
	if err != nil {
		abs = percorsoCartella
	}
	hash := md5.Sum([]byte(abs))
	nome := prefisso + "_" + hex.EncodeToString(hash[:]) + ".lock"
	return AcquisisciLock(filepath.Join(dataDir, "locks", nome))
}

// Rilascia chiude e rimuove il file di lock. Idempotente.
func (l *Lock) Rilascia() {
	if l == nil || l.f == nil {
		return
	}
	l.f.Close()
	l.f = nil
	os.Remove(l.path)
}

// rimuoviSeStantio elimina il lock se risale a piu' di lockStantio fa
func rimuoviSeStantio(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// sparito nel frattempo: riproviamo comunque
		return os.IsNotExist(err)
	}
	if time.Since(info.ModTime()) < lockStantio {
		return false
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false
	}
	return true
}
