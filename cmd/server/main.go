package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"protekgest/internal/auth"
	"protekgest/internal/bolle"
	"protekgest/internal/commesse"
	"protekgest/internal/config"
	"protekgest/internal/database"
	"protekgest/internal/excel"
	"protekgest/internal/handlers"
	"protekgest/internal/middleware"
)

func main() {
	// Flag per configurazione
	port := flag.Int("port", 8080, "Porta del server")
	dbPath := flag.String("db", "", "Percorso del database SQLite")
	dataDir := flag.String("data", "", "Cartella dati (contatori, lock, impostazioni)")
	clientDir := flag.String("client", "", "Cartella dei file statici del client")
	flag.Parse()

	// Determina la directory base del progetto
	execPath, err := os.Executable()
	if err != nil {
		log.Fatal("Errore determinazione percorso eseguibile:", err)
	}
	baseDir := filepath.Dir(filepath.Dir(filepath.Dir(execPath)))

	// Se eseguito con go run, usa la directory corrente
	if _, err := os.Stat(filepath.Join(baseDir, "data")); os.IsNotExist(err) {
		baseDir, _ = os.Getwd()
	}

	if *dataDir == "" {
		*dataDir = filepath.Join(baseDir, "data")
	}
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatal("Errore creazione cartella dati:", err)
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*dataDir, "protekgest.db")
	}

	// Inizializza il database
	log.Println("Inizializzazione database:", *dbPath)
	if err := database.InitDB(*dbPath); err != nil {
		log.Fatal("Errore inizializzazione database:", err)
	}
	defer database.CloseDB()

	// Crea utente admin predefinito
	if err := database.CreateDefaultAdmin(auth.HashPassword); err != nil {
		log.Println("Attenzione: errore creazione admin predefinito:", err)
	}

	// Avvia routine pulizia sessioni scadute
	auth.StartCleanupRoutine()

	// Impostazioni applicazione
	impostazioni := config.NewStore(filepath.Join(*dataDir, "impostazioni.json"))

	percorsoArchivio := func() string {
		imp, err := impostazioni.Carica()
		if err != nil {
			log.Println("Attenzione: errore lettura impostazioni:", err)
			return ""
		}
		return imp.PercorsoCartella
	}

	// Registro Excel delle bolle di entrata
	registro := excel.NewRegistro(func() string {
		imp, err := impostazioni.Carica()
		if err != nil || imp.ReportDdtPath == "" {
			return ""
		}
		return imp.ReportDdtPath
	})

	// Motore di emissione bolle
	emettitore := &bolle.Emettitore{
		Progressivi:      bolle.NewProgressivi(*dataDir),
		Compositore:      bolle.NewCompositorePDF(),
		Registro:         registro,
		DataDir:          *dataDir,
		PercorsoArchivio: percorsoArchivio,
		TemplateEntrata: func() ([]byte, error) {
			imp, err := impostazioni.Carica()
			if err != nil {
				return nil, err
			}
			if imp.MasterBolleEntrata == "" {
				return nil, fmt.Errorf("modulo master bolla entrata non configurato")
			}
			return os.ReadFile(imp.MasterBolleEntrata)
		},
	}

	// Anagrafica commesse con emissione automatica all'archiviazione
	gestoreCommesse := commesse.NewStore(*dataDir)

	finestra := bolle.FinestraTriggerDefault
	if imp, err := impostazioni.Carica(); err == nil && imp.DebounceAutoBollaSecondi > 0 {
		finestra = time.Duration(imp.DebounceAutoBollaSecondi) * time.Second
	}
	trigger := bolle.NewTriggerAutomatico(finestra, func(percorso string) {
		dati, err := commesse.Risolvi(percorso)
		if err != nil {
			log.Printf("Attenzione: emissione automatica per %s fallita: %v", percorso, err)
			return
		}
		ris, err := emettitore.EmettiEntrata(dati)
		if err != nil {
			log.Printf("Attenzione: emissione automatica per %s fallita: %v", percorso, err)
			return
		}
		switch ris.Esito {
		case bolle.EsitoEmessa:
			log.Printf("Bolla %s emessa automaticamente: %s", ris.NumeroDoc, ris.Percorso)
		default:
			log.Printf("Emissione automatica per %s: %s", percorso, ris.Nota)
		}
	})
	gestoreCommesse.OnArchiviata = trigger.CommessaArchiviata

	gestoreCommesse.AvviaMonitor(30*time.Second, percorsoArchivio)
	defer gestoreCommesse.FermaMonitor()

	handlers.Init(emettitore, gestoreCommesse, impostazioni)

	// Configura il router
	mux := http.NewServeMux()

	// File statici del client
	if *clientDir == "" {
		*clientDir = filepath.Join(baseDir, "client", "dist")
	}
	if _, err := os.Stat(*clientDir); err == nil {
		mux.Handle("/", http.FileServer(http.Dir(*clientDir)))
	}

	// Route pubbliche
	mux.HandleFunc("/api/login", handlers.LoginHandler)
	mux.HandleFunc("/api/logout", handlers.LogoutHandler)
	protetta := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}
	tecnico := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(middleware.RequireTecnico(h))
	}

	mux.Handle("/api/register", tecnico(handlers.RegisterHandler))
	mux.Handle("/api/cambio-password", protetta(handlers.CambioPasswordHandler))

	mux.Handle("/api/me", protetta(handlers.MeHandler))

	// Progressivi e bolle
	mux.Handle("/api/prossima-bolla", protetta(handlers.ProssimaBollaHandler))
	mux.Handle("/api/avanza-bolla", tecnico(handlers.AvanzaBollaHandler))
	mux.Handle("/api/prossima-bolla-entrata", protetta(handlers.ProssimaBollaEntrataHandler))
	mux.Handle("/api/avanza-bolla-entrata", tecnico(handlers.AvanzaBollaEntrataHandler))
	mux.Handle("/api/genera-bolla-entrata", tecnico(handlers.GeneraBollaEntrataHandler))
	mux.Handle("/api/master-bolla", protetta(handlers.MasterBollaHandler))
	mux.Handle("/api/save-pdf-report", tecnico(handlers.SalvaPDFReportHandler))
	mux.Handle("/api/save-excel-report", tecnico(handlers.SalvaExcelReportHandler))

	// Commesse
	mux.Handle("/api/commesse", protetta(handlers.ListaCommesseHandler))
	mux.Handle("/api/commessa", protetta(handlers.DettagliCommessaHandler))
	mux.Handle("/api/salva-commessa", tecnico(handlers.SalvaCommessaHandler))
	mux.Handle("/api/cancella-commessa", tecnico(handlers.CancellaCommessaHandler))
	mux.Handle("/api/rinomina-cartella", tecnico(handlers.RinominaCartellaHandler))
	mux.Handle("/api/report", protetta(handlers.ReportHandler))
	mux.Handle("/api/lista-cartelle", protetta(handlers.ListaCartelleHandler))
	mux.Handle("/api/lista-file", protetta(handlers.ListaFileHandler))
	mux.Handle("/api/monitor-folder", tecnico(handlers.MonitorFolderHandler))

	// Impostazioni
	mux.Handle("/api/leggi-impostazioni", protetta(handlers.LeggiImpostazioniHandler))
	mux.Handle("/api/save-settings", tecnico(handlers.SalvaImpostazioniHandler))

	// Avvia il server
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Server ProtekGest avviato su http://localhost%s", addr)
	log.Println("Credenziali predefinite: admin / admin")
	log.Println("IMPORTANTE: Cambiare la password al primo accesso!")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Errore avvio server:", err)
	}
}
