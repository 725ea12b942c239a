package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDB inizializza la connessione al database
func InitDB(dbPath string) error {
	// Crea la directory se non esiste
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("errore creazione directory database: %w", err)
	}

	var err error
	DB, err = sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("errore apertura database: %w", err)
	}

	// Test connessione
	if err = DB.Ping(); err != nil {
		return fmt.Errorf("errore connessione database: %w", err)
	}

	// Crea le tabelle
	if err = createTables(); err != nil {
		return fmt.Errorf("errore creazione tabelle: %w", err)
	}

	log.Println("Database inizializzato correttamente")
	return nil
}

// CloseDB chiude la connessione al database
func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}

func createTables() error {
	schema := `
	-- Tabella utenti (tecnici e guest)
	CREATE TABLE IF NOT EXISTS utenti (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		nome TEXT NOT NULL,
		cognome TEXT NOT NULL,
		email TEXT NOT NULL,
		ruolo TEXT NOT NULL DEFAULT 'guest' CHECK(ruolo IN ('tecnico', 'guest')),
		attivo INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_utenti_username ON utenti(username);
	`

	_, err := DB.Exec(schema)
	return err
}

// CreateDefaultAdmin crea l'utente admin predefinito se non esiste
func CreateDefaultAdmin(hashPassword func(string) (string, error)) error {
	var count int
	err := DB.QueryRow("SELECT COUNT(*) FROM utenti WHERE username = 'admin'").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		// Password default: admin (da cambiare al primo accesso)
		hashedPassword, err := hashPassword("admin")
		if err != nil {
			return err
		}
		_, err = DB.Exec(`
			INSERT INTO utenti (username, password, nome, cognome, email, ruolo, attivo)
			VALUES ('admin', ?, 'Admin', 'Sistema', 'admin@protekgest.local', 'tecnico', 1)
		`, hashedPassword)
		if err != nil {
			return err
		}
		log.Println("Utente admin predefinito creato (username: admin, password: admin)")
	}

	return nil
}
