package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mediport.org/internal/access"
	"mediport.org/internal/config"
	"mediport.org/internal/httpapi"
	"mediport.org/internal/obs"
	"mediport.org/internal/patient"
	"mediport.org/internal/token"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tokens, err := token.NewService([]byte(cfg.AuthSecret),
		token.WithIssuer(cfg.Issuer),
		token.WithPatientTTL(cfg.PatientTokenTTL),
		token.WithDoctorTTL(cfg.DoctorTokenTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	// PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		db           *sql.DB
		patientStore patient.Store
		grantStore   access.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		patientStore = patient.NewPGStore(db)
		grantStore = access.NewPGStore(db)
	} else {
		patientStore = patient.NewInMemory()
		grantStore = access.NewInMemory()
	}

	patients := patient.NewService(patientStore)
	grants := access.NewService(grantStore, patients, tokens,
		access.WithGrantTTL(cfg.GrantTTL))

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, patients, grants, tokens,
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithRateLimit(cfg.RatePerSec, cfg.RateBurst),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mediport-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
