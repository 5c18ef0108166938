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

	"patronage.fm/internal/access"
	"patronage.fm/internal/audit"
	"patronage.fm/internal/catalog"
	"patronage.fm/internal/httpapi"
	"patronage.fm/internal/member"
	"patronage.fm/internal/obs"
	"patronage.fm/internal/session"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("PATRONAGE_PG_DSN")
	if dsn == "" {
		log.Fatal("PATRONAGE_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	secret := os.Getenv("PATRONAGE_SESSION_SECRET")
	if secret == "" {
		log.Fatal("PATRONAGE_SESSION_SECRET is required")
	}
	sessions, err := session.NewVerifier(secret)
	if err != nil {
		log.Fatalf("session verifier: %v", err)
	}

	members := member.NewPGStore(db)
	guard, err := access.NewGuard(members, members,
		access.WithRecorder(audit.Fanout{audit.LogRecorder{}, audit.NewPGRecorder(db)}))
	if err != nil {
		log.Fatalf("guard: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Guard:      guard,
		Members:    members,
		Catalog:    catalog.NewPGStore(db),
		Sessions:   sessions,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	addr := os.Getenv("PATRONAGE_ADDR")
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

	log.Printf("Starting patronage-api %s on %s", version, srv.Addr)

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
	_ = db.Close()
	log.Println("Stopped")
}
