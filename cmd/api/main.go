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

	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"

	"societyos.org/internal/auth"
	"societyos.org/internal/billing"
	"societyos.org/internal/docs"
	"societyos.org/internal/httpapi"
	"societyos.org/internal/obs"
	"societyos.org/internal/society"
	"societyos.org/internal/stream"
)

var version = "0.3.0"

func main() {
	// .env — удобно для локальной разработки; в проде переменные
	// приходят из окружения.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SOCIETYOS_COMMIT"))

	secret := os.Getenv("SOCIETYOS_AUTH_SECRET")
	if secret == "" {
		log.Fatal("SOCIETYOS_AUTH_SECRET is required")
	}

	var db *sql.DB
	if dsn := os.Getenv("SOCIETYOS_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var (
		userStore    auth.Store
		societyStore society.Store
		billingStore billing.Store
		docStore     docs.Store
	)
	if db != nil {
		userStore = auth.NewPGStore(db)
		societyStore = society.NewPGStore(db)
		billingStore = billing.NewPGStore(db)
		docStore = docs.NewPGStore(db)
	} else {
		log.Println("no SOCIETYOS_PG_DSN set, using in-memory stores")
		userStore = auth.NewMemoryStore()
		societyStore = society.NewMemoryStore()
		billingStore = billing.NewMemoryStore()
		docStore = docs.NewMemoryStore()
	}

	authSvc, err := auth.NewService(userStore, auth.WithSecret(secret))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	societySvc := society.NewService(societyStore, authSvc, userStore)

	events := stream.New()
	billingSvc := billing.NewService(billingStore, userStore, societySvc, billing.WithEvents(events))

	uploadDir := os.Getenv("SOCIETYOS_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "data/uploads"
	}
	blobs, err := docs.NewFSBlobStore(uploadDir, "/uploads")
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	docsSvc := docs.NewService(docStore, blobs)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version,
		authSvc, societySvc, billingSvc, docsSvc, events)

	addr := os.Getenv("SOCIETYOS_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting societyos-api %s on %s", version, srv.Addr)

	// graceful shutdown
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
