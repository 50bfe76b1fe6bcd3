// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Blockchain settings
	RPCURL           string
	ChainID          int64
	PrivateKey       string // Hex-encoded, no 0x prefix
	WalletAddress    string
	USDCContract     string
	DecisionRegistry string // on-chain decision log contract (optional, sim ledger if unset)
	ExplorerBaseURL  string

	// Timeouts. Ledger calls get a tighter budget than store calls: a slow
	// decision log must abort the batch rather than block a scheduler tick.
	LedgerTimeout time.Duration
	StoreTimeout  time.Duration

	// Scheduler settings
	SchedulerInterval  time.Duration
	SchedulerBatchSize int
	SchedulerWorkers   int
	ReminderInterval   time.Duration
	ResumeAfterFailure bool // regenerate a recurring series even when an occurrence fails

	// Agent identity recorded on decision records
	AgentID string

	// Notifications
	WebhookURL    string
	WebhookSecret string

	// Exchange rates
	RatesURL string
	RatesTTL time.Duration

	// Observability
	OTLPEndpoint string
}

// Defaults target Base Sepolia, same as the reference deployments.
const (
	DefaultRPCURL       = "https://sepolia.base.org"
	DefaultChainID      = 84532                                        // Base Sepolia
	DefaultUSDCContract = "0x036CbD53842c5426634e7929541eC2318f3dCF7e" // Base Sepolia USDC
	DefaultExplorerURL  = "https://sepolia.basescan.org"
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultAgentID      = "sentrypay"
)

const (
	DefaultLedgerTimeout     = 30 * time.Second
	DefaultStoreTimeout      = 10 * time.Second
	DefaultSchedulerInterval = time.Minute
	DefaultSchedulerBatch    = 50
	DefaultSchedulerWorkers  = 4
	DefaultReminderInterval  = 24 * time.Hour
	DefaultRatesTTL          = 5 * time.Minute
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RPCURL:             getEnv("RPC_URL", DefaultRPCURL),
		ChainID:            getEnvInt64("CHAIN_ID", DefaultChainID),
		PrivateKey:         os.Getenv("PRIVATE_KEY"), // Optional, sim ledger if not set
		WalletAddress:      os.Getenv("WALLET_ADDRESS"),
		USDCContract:       getEnv("USDC_CONTRACT", DefaultUSDCContract),
		DecisionRegistry:   os.Getenv("DECISION_REGISTRY"),
		ExplorerBaseURL:    getEnv("EXPLORER_BASE_URL", DefaultExplorerURL),
		LedgerTimeout:      getEnvDuration("LEDGER_TIMEOUT", DefaultLedgerTimeout),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", DefaultStoreTimeout),
		SchedulerInterval:  getEnvDuration("SCHEDULER_INTERVAL", DefaultSchedulerInterval),
		SchedulerBatchSize: int(getEnvInt64("SCHEDULER_BATCH_SIZE", DefaultSchedulerBatch)),
		SchedulerWorkers:   int(getEnvInt64("SCHEDULER_WORKERS", DefaultSchedulerWorkers)),
		ReminderInterval:   getEnvDuration("REMINDER_INTERVAL", DefaultReminderInterval),
		ResumeAfterFailure: getEnvBool("SCHEDULER_RESUME_AFTER_FAILURE", false),
		AgentID:            getEnv("AGENT_ID", DefaultAgentID),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		RatesURL:           getEnv("RATES_URL", "https://api.coingecko.com/api/v3/simple/price"),
		RatesTTL:           getEnvDuration("RATES_TTL", DefaultRatesTTL),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	// A private key is only required when transacting against a real chain.
	if c.PrivateKey != "" {
		key := c.PrivateKey
		if len(key) == 66 && key[:2] == "0x" {
			key = key[2:]
		}
		if len(key) != 64 {
			return fmt.Errorf("PRIVATE_KEY must be 64 hex characters (with or without 0x prefix)")
		}
		if c.RPCURL == "" {
			return fmt.Errorf("RPC_URL is required when PRIVATE_KEY is set")
		}
	}

	if c.SchedulerInterval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s")
	}
	if c.SchedulerBatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be positive")
	}
	if c.SchedulerWorkers <= 0 {
		return fmt.Errorf("SCHEDULER_WORKERS must be positive")
	}

	return nil
}

// UseSimLedger reports whether the deployment runs without a real chain client.
func (c *Config) UseSimLedger() bool {
	return c.PrivateKey == ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
