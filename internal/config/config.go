// Package config reads server configuration from the environment.
package config

import "os"

// Config holds the server configuration.
type Config struct {
	Addr        string
	DBPath      string
	JWTSecret   string
	BaseURL     string
	BrevoAPIKey string
	EmailFrom   string
	EmailName   string
	SMSEndpoint string
	SMSAPIKey   string
	SMSSender   string
}

// Load reads configuration from environment variables, applying defaults for
// anything unset. Missing provider credentials mean that channel falls back to
// a mock provider.
func Load() Config {
	return Config{
		Addr:        getenv("APP_ADDR", ":8080"),
		DBPath:      getenv("DB_PATH", "retrouvtout.sqlite3"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		BaseURL:     getenv("BASE_URL", "http://localhost:3000"),
		BrevoAPIKey: os.Getenv("BREVO_API_KEY"),
		EmailFrom:   getenv("EMAIL_FROM", "no-reply@retrouvtout.example"),
		EmailName:   getenv("EMAIL_FROM_NAME", "Retrouv'Tout"),
		SMSEndpoint: os.Getenv("SMS_ENDPOINT"),
		SMSAPIKey:   os.Getenv("SMS_API_KEY"),
		SMSSender:   getenv("SMS_SENDER", "RetrouvTout"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
