package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Keychain backend names accepted in BUDGETAN_KEYCHAIN.
const (
	KeychainKeyring = "keyring"
	KeychainFile    = "file"
	KeychainMemory  = "memory"
)

// Config holds all environment-based configuration for the budgetan CLI.
type Config struct {
	// Base URLs of the three Budgetan services.
	AuthBaseURL    string `env:"BUDGETAN_AUTH_URL"`
	ExpenseBaseURL string `env:"BUDGETAN_EXPENSE_URL"`
	IncomeBaseURL  string `env:"BUDGETAN_INCOME_URL"`

	// Keychain selects the credential store backend: keyring (OS secret
	// service), file (encrypted bbolt database), or memory (ephemeral).
	Keychain string `env:"BUDGETAN_KEYCHAIN" envDefault:"keyring"`

	// StateDir is where the file keychain keeps its database. Defaults to
	// ~/.budgetan when empty.
	StateDir string `env:"BUDGETAN_STATE_DIR"`

	// StorePassphrase encrypts credential values at rest in the file
	// keychain. Required when Keychain is "file".
	StorePassphrase string `env:"BUDGETAN_STORE_PASSPHRASE"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, err
		}

		cfg.StateDir = dir
	}

	absDir, err := filepath.Abs(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("resolving state dir to absolute path: %w", err)
	}

	cfg.StateDir = absDir

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthBaseURL == "" {
		return fmt.Errorf("BUDGETAN_AUTH_URL is required")
	}

	if c.ExpenseBaseURL == "" {
		return fmt.Errorf("BUDGETAN_EXPENSE_URL is required")
	}

	if c.IncomeBaseURL == "" {
		return fmt.Errorf("BUDGETAN_INCOME_URL is required")
	}

	switch c.Keychain {
	case KeychainKeyring, KeychainMemory:
	case KeychainFile:
		if c.StorePassphrase == "" {
			return fmt.Errorf("BUDGETAN_STORE_PASSPHRASE is required when BUDGETAN_KEYCHAIN is %q", KeychainFile)
		}
	default:
		return fmt.Errorf("BUDGETAN_KEYCHAIN must be one of %q, %q, %q", KeychainKeyring, KeychainFile, KeychainMemory)
	}

	return nil
}

// defaultStateDir returns ~/.budgetan.
func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".budgetan"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
