package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	KurrentDB  KurrentDBConfig
	Auth       AuthConfig
	Agent      AgentConfig
	Audit      AuditConfig
	Transcribe TranscribeConfig
	EHR        EHRConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// used as the append-only audit sink backend.
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// AgentConfig selects the providers behind the orchestrator's
// collaborator contracts. Each value picks from a closed set; there is
// no runtime plugin discovery.
type AgentConfig struct {
	AgentID string
	// RequireApproval keeps every generated recommendation behind a
	// clinician approval gate.
	RequireApproval bool
	// NLPProvider: "local" (keyword extraction)
	NLPProvider string
	// GuidelineProvider: "local" (rule-based)
	GuidelineProvider string
	// RecordStore: "memory" or "postgres"
	RecordStore string
	// AudioTranscriber: "" (disabled) or "batch" (HTTP batch job client)
	AudioTranscriber string
	// BatchTranscribeURL is the base URL of the batch transcription API
	BatchTranscribeURL string
}

// AuditConfig selects the audit sink backend.
type AuditConfig struct {
	// Sink: "memory", "file", or "kurrentdb"
	Sink string
	// FilePath is the JSON-lines log location for the file sink
	FilePath string
}

type TranscribeConfig struct {
	// PollInterval in seconds for batch transcription jobs
	PollIntervalSeconds int
	// MaxPolls before a batch job is considered failed
	MaxPolls int
}

// EHRConfig holds the optional hospital information system bridge
// used to surface lab reports and appointments in patient views.
type EHRConfig struct {
	// Provider: "" (disabled) or "heliant"
	Provider string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "platform"),
			Password: getEnv("DB_PASSWORD", "platform"),
			Database: getEnv("DB_NAME", "platform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Agent: AgentConfig{
			AgentID:            getEnv("AGENT_ID", "care-agent-primary"),
			RequireApproval:    getEnvBool("AGENT_REQUIRE_APPROVAL", true),
			NLPProvider:        getEnv("AGENT_NLP_PROVIDER", "local"),
			GuidelineProvider:  getEnv("AGENT_GUIDELINE_PROVIDER", "local"),
			RecordStore:        getEnv("AGENT_RECORD_STORE", "memory"),
			AudioTranscriber:   getEnv("AGENT_AUDIO_TRANSCRIBER", ""),
			BatchTranscribeURL: getEnv("AGENT_BATCH_TRANSCRIBE_URL", "http://localhost:9020"),
		},
		Audit: AuditConfig{
			Sink:     getEnv("AUDIT_SINK", "file"),
			FilePath: getEnv("AUDIT_FILE_PATH", "logs/audit.log"),
		},
		Transcribe: TranscribeConfig{
			PollIntervalSeconds: getEnvInt("TRANSCRIBE_POLL_INTERVAL_SECONDS", 5),
			MaxPolls:            getEnvInt("TRANSCRIBE_MAX_POLLS", 60),
		},
		EHR: EHRConfig{
			Provider: getEnv("EHR_PROVIDER", ""),
			Host:     getEnv("EHR_HOST", "localhost"),
			Port:     getEnvInt("EHR_PORT", 1433),
			User:     getEnv("EHR_USER", ""),
			Password: getEnv("EHR_PASSWORD", ""),
			Database: getEnv("EHR_DATABASE", "his"),
			SSLMode:  getEnv("EHR_SSLMODE", "disable"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
