package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aguideptbr.org/internal/auth"
	"aguideptbr.org/internal/content"
	"aguideptbr.org/internal/httpapi"
	"aguideptbr.org/internal/obs"
	"aguideptbr.org/internal/ownership"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("AGUIDE_PG_DSN")
	if dsn == "" {
		log.Fatal("AGUIDE_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Signing key parse failure is a boot invariant: abort, never degrade
	// into an unauthenticated service.
	signer, err := auth.NewSigner(loadPrivateKey())
	if err != nil {
		log.Fatalf("load signing key: %v", err)
	}

	issuerName := envOr("AGUIDE_JWT_ISSUER", "aguide-api")
	users := auth.NewPGUserStore(db)
	contents := content.NewPGStore(db)
	claims := ownership.NewPGClaimStore(db)

	issuerOpts := []auth.IssuerOption{}
	if raw := os.Getenv("AGUIDE_TOKEN_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			log.Fatalf("invalid AGUIDE_TOKEN_TTL_SECONDS: %q", raw)
		}
		issuerOpts = append(issuerOpts, auth.WithTokenTTL(time.Duration(seconds)*time.Second))
	}
	issuer := auth.NewIssuer(signer, issuerName, issuerOpts...)
	validator := auth.NewValidator(signer, issuerName, users)
	authSvc := auth.NewService(users, issuer)

	verifier, err := ownership.NewVerifier(users, contents, claims, os.Getenv("AGUIDE_OWNERSHIP_SECRET"))
	if err != nil {
		log.Fatalf("ownership verifier: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, validator, verifier)

	srv := &http.Server{
		Addr:              envOr("AGUIDE_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting aguide-api %s on %s", version, srv.Addr)

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

// loadPrivateKey reads the PEM either inline or from a file path. One of the
// two must be set.
func loadPrivateKey() string {
	if pem := os.Getenv("AGUIDE_JWT_PRIVATE_KEY"); pem != "" {
		return pem
	}
	path := os.Getenv("AGUIDE_JWT_PRIVATE_KEY_FILE")
	if path == "" {
		log.Fatal("AGUIDE_JWT_PRIVATE_KEY or AGUIDE_JWT_PRIVATE_KEY_FILE is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read private key %s: %v", path, err)
	}
	return string(data)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
