package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/retrouvtout/backend/internal/alert"
	"github.com/retrouvtout/backend/internal/api"
	"github.com/retrouvtout/backend/internal/config"
	"github.com/retrouvtout/backend/internal/db"
	"github.com/retrouvtout/backend/internal/handover"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: retrouvtout <init|serve>")
		os.Exit(1)
	}

	// Optional .env file for local development.
	_ = godotenv.Load()

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\nUsage: retrouvtout <init|serve>\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdInit(args []string) {
	cfg := config.Load()

	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to SQLite database file")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: database file %s already exists\n", *dbPath)
		os.Exit(1)
	}

	database, password, err := initDatabase(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	database.Close()

	printAdminCredentials(*dbPath, password)
}

func cmdServe(args []string) {
	cfg := config.Load()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to SQLite database file")
	addr := fs.String("addr", cfg.Addr, "listen address")
	jwtSecret := fs.String("jwt-secret", cfg.JWTSecret, "JWT signing key (auto-generated if empty)")
	fs.Parse(args)

	if *jwtSecret == "" {
		secret, err := generatePassword(32)
		if err != nil {
			log.Fatalf("Failed to generate JWT secret: %v", err)
		}
		*jwtSecret = secret
		log.Println("JWT secret auto-generated (tokens will be invalidated on restart)")
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		database.Close()

		printAdminCredentials(*dbPath, password)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Run migrations (idempotent).
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	dispatcher := notify.NewDispatcher(emailProvider(cfg), smsProvider(cfg), hub, nil)

	worker := alert.NewWorker(database, dispatcher, cfg.BaseURL, nil)
	worker.Start(ctx)
	defer worker.Stop()

	handoverSvc := handover.NewService(database, dispatcher, nil)

	sweeper := handover.NewSweeper(database, nil)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := api.NewRouter(database, *jwtSecret, worker, handoverSvc, dispatcher, hub)
	server := &http.Server{
		Addr:    *addr,
		Handler: api.LoggingMiddleware(router),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	fmt.Printf("Server listening on %s\n", *addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

// emailProvider returns the Brevo provider when configured, otherwise a mock
// that logs instead of sending.
func emailProvider(cfg config.Config) notify.EmailProvider {
	if cfg.BrevoAPIKey == "" {
		log.Println("BREVO_API_KEY not set, emails will be logged instead of sent")
		return notify.NewMockEmailProvider(nil)
	}
	return notify.NewBrevoEmailProvider(cfg.BrevoAPIKey, cfg.EmailFrom, cfg.EmailName, nil)
}

// smsProvider returns the HTTP SMS provider when configured, otherwise a mock.
func smsProvider(cfg config.Config) notify.SMSProvider {
	if cfg.SMSEndpoint == "" || cfg.SMSAPIKey == "" {
		log.Println("SMS_ENDPOINT/SMS_API_KEY not set, SMS will be logged instead of sent")
		return notify.NewMockSMSProvider(nil)
	}
	return notify.NewHTTPSMSProvider(cfg.SMSEndpoint, cfg.SMSAPIKey, cfg.SMSSender, nil)
}

// initDatabase creates a new database, runs migrations, and creates the admin user.
func initDatabase(path string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("running migrations: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	admin, err := store.CreateUser(ctx, database, "Admin", "admin@localhost", string(hash), "")
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}
	if err := store.SetUserRole(ctx, database, admin.ID, model.RoleAdmin); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("promoting admin user: %w", err)
	}

	return database, password, nil
}

func printAdminCredentials(dbPath, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email: admin@localhost\n")
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
