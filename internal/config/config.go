package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the memory store and its collaborators.
type Config struct {
	DataDir       string
	LogFile       string
	SummaryFile   string
	KnowledgeDir  string
	KnowledgeSrc  string
	JournalDBPath string
	TaxonomyFile  string

	Timezone      *time.Location
	MinDayEntries int
	EmbeddingDim  int

	SearchK    int
	MinScore   float64
	KnowledgeK int
	Boosts     Boosts

	ArchiveThreshold int
	ArchiveCron      string

	EmbedBaseURL string
	EmbedAPIKey  string
	EmbedModel   string

	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	UserName string
	BotName  string

	APIPort   string
	LogLevel  string
	LogFormat string
}

// Boosts are the additive relevance adjustments applied to knowledge results.
// They are empirical defaults, not correctness constraints.
type Boosts struct {
	Category        float64
	DecisionGuide   float64
	Keyword         float64
	KeywordCap      float64
	Level           float64
	ConfidenceFloor float64
}

// DefaultBoosts returns the stock relevance boosts.
func DefaultBoosts() Boosts {
	return Boosts{
		Category:        0.2,
		DecisionGuide:   0.1,
		Keyword:         0.05,
		KeywordCap:      0.15,
		Level:           0.05,
		ConfidenceFloor: 0.3,
	}
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	dataDir := getEnv("MEMORY_DATA_DIR", "./data")

	cfg := &Config{
		DataDir:       dataDir,
		LogFile:       getEnv("MEMORY_LOG_FILE", filepath.Join(dataDir, "memory.json")),
		SummaryFile:   getEnv("MEMORY_SUMMARY_FILE", filepath.Join(dataDir, "embeddings.json")),
		KnowledgeDir:  getEnv("MEMORY_KNOWLEDGE_DIR", filepath.Join(dataDir, "knowledge")),
		KnowledgeSrc:  getEnv("MEMORY_KNOWLEDGE_SOURCE_DIR", filepath.Join(dataDir, "knowledge_src")),
		JournalDBPath: getEnv("MEMORY_JOURNAL_DB", filepath.Join(dataDir, "journal.db")),
		TaxonomyFile:  getEnv("MEMORY_TAXONOMY_FILE", ""),
		ArchiveCron:   getEnv("MEMORY_ARCHIVE_CRON", ""),

		EmbedBaseURL: getEnv("EMBED_BASE_URL", "http://localhost:11434"),
		EmbedAPIKey:  getEnv("EMBED_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "nomic-embed-text"),

		LLMBaseURL: getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "llama3.2:latest"),

		UserName: getEnv("USER_NAME", "User"),
		BotName:  getEnv("BOT_NAME", "Assistant"),

		APIPort:   getEnv("API_PORT", "9000"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	tzName := getEnv("MEMORY_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("MEMORY_TIMEZONE must be a valid IANA zone: %w", err)
	}
	cfg.Timezone = loc

	if cfg.MinDayEntries, err = positiveInt("MEMORY_MIN_DAY_ENTRIES", "4"); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim, err = positiveInt("MEMORY_EMBED_DIM", "768"); err != nil {
		return nil, err
	}
	if cfg.SearchK, err = positiveInt("MEMORY_SEARCH_K", "5"); err != nil {
		return nil, err
	}
	if cfg.KnowledgeK, err = positiveInt("MEMORY_KNOWLEDGE_K", "3"); err != nil {
		return nil, err
	}
	if cfg.ArchiveThreshold, err = positiveInt("MEMORY_ARCHIVE_THRESHOLD", "20"); err != nil {
		return nil, err
	}
	if cfg.LLMMaxTokens, err = positiveInt("LLM_MAX_TOKENS", "200"); err != nil {
		return nil, err
	}
	if cfg.LLMMaxRetries, err = positiveInt("LLM_MAX_RETRIES", "3"); err != nil {
		return nil, err
	}

	if cfg.MinScore, err = unitFloat("MEMORY_MIN_SCORE", "0.3"); err != nil {
		return nil, err
	}
	if cfg.LLMTemperature, err = parseFloat("LLM_TEMPERATURE", "0.3"); err != nil {
		return nil, err
	}

	defaults := DefaultBoosts()
	boostVars := []struct {
		key    string
		target *float64
		def    float64
	}{
		{"MEMORY_BOOST_CATEGORY", &cfg.Boosts.Category, defaults.Category},
		{"MEMORY_BOOST_DECISION", &cfg.Boosts.DecisionGuide, defaults.DecisionGuide},
		{"MEMORY_BOOST_KEYWORD", &cfg.Boosts.Keyword, defaults.Keyword},
		{"MEMORY_BOOST_KEYWORD_CAP", &cfg.Boosts.KeywordCap, defaults.KeywordCap},
		{"MEMORY_BOOST_LEVEL", &cfg.Boosts.Level, defaults.Level},
		{"MEMORY_CONFIDENCE_FLOOR", &cfg.Boosts.ConfidenceFloor, defaults.ConfidenceFloor},
	}
	for _, bv := range boostVars {
		v, err := unitFloat(bv.key, strconv.FormatFloat(bv.def, 'f', -1, 64))
		if err != nil {
			return nil, err
		}
		*bv.target = v
	}

	timeout, err := time.ParseDuration(getEnv("LLM_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("LLM_TIMEOUT must be a valid duration: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT must be greater than 0")
	}
	cfg.LLMTimeout = timeout

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.KnowledgeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

func parseFloat(key, defaultValue string) (float64, error) {
	v, err := strconv.ParseFloat(getEnv(key, defaultValue), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

// unitFloat parses a value that must lie in [0, 1].
func unitFloat(key, defaultValue string) (float64, error) {
	v, err := parseFloat(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%s must be between 0 and 1", key)
	}
	return v, nil
}
