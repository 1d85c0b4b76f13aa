package config

import (
	"path/filepath"
	"testing"
	"time"
)

var configEnvVars = []string{
	"MEMORY_DATA_DIR", "MEMORY_LOG_FILE", "MEMORY_SUMMARY_FILE", "MEMORY_KNOWLEDGE_DIR",
	"MEMORY_KNOWLEDGE_SOURCE_DIR", "MEMORY_JOURNAL_DB", "MEMORY_TAXONOMY_FILE", "MEMORY_TIMEZONE",
	"MEMORY_MIN_DAY_ENTRIES", "MEMORY_EMBED_DIM", "MEMORY_SEARCH_K", "MEMORY_MIN_SCORE",
	"MEMORY_KNOWLEDGE_K", "MEMORY_BOOST_CATEGORY", "MEMORY_BOOST_DECISION", "MEMORY_BOOST_KEYWORD",
	"MEMORY_BOOST_KEYWORD_CAP", "MEMORY_BOOST_LEVEL", "MEMORY_CONFIDENCE_FLOOR",
	"MEMORY_ARCHIVE_THRESHOLD", "MEMORY_ARCHIVE_CRON",
	"EMBED_BASE_URL", "EMBED_API_KEY", "EMBED_MODEL",
	"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"LLM_TIMEOUT", "LLM_MAX_RETRIES", "USER_NAME", "BOT_NAME",
	"API_PORT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable Load reads; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.MinDayEntries != 4 {
					t.Errorf("MinDayEntries = %d, want 4", cfg.MinDayEntries)
				}
				if cfg.MinScore != 0.3 {
					t.Errorf("MinScore = %v, want 0.3", cfg.MinScore)
				}
				if cfg.SearchK != 5 {
					t.Errorf("SearchK = %d, want 5", cfg.SearchK)
				}
				if cfg.Timezone != time.UTC {
					t.Errorf("Timezone = %v, want UTC", cfg.Timezone)
				}
				if cfg.Boosts != DefaultBoosts() {
					t.Errorf("Boosts = %+v, want %+v", cfg.Boosts, DefaultBoosts())
				}
				if cfg.LLMTimeout != 60*time.Second {
					t.Errorf("LLMTimeout = %v, want 60s", cfg.LLMTimeout)
				}
				if filepath.Base(cfg.LogFile) != "memory.json" {
					t.Errorf("LogFile = %q, want memory.json under data dir", cfg.LogFile)
				}
			},
		},
		{
			name: "overrides",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("MEMORY_TIMEZONE", "Europe/Berlin")
				t.Setenv("MEMORY_MIN_DAY_ENTRIES", "6")
				t.Setenv("MEMORY_BOOST_CATEGORY", "0.25")
				t.Setenv("LOG_FORMAT", "JSON")
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.Timezone.String() != "Europe/Berlin" {
					t.Errorf("Timezone = %v, want Europe/Berlin", cfg.Timezone)
				}
				if cfg.MinDayEntries != 6 {
					t.Errorf("MinDayEntries = %d, want 6", cfg.MinDayEntries)
				}
				if cfg.Boosts.Category != 0.25 {
					t.Errorf("Boosts.Category = %v, want 0.25", cfg.Boosts.Category)
				}
				if cfg.LogFormat != "json" {
					t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
				}
			},
		},
		{
			name: "invalid timezone",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("MEMORY_TIMEZONE", "Mars/Olympus")
			},
			wantErr: true,
		},
		{
			name: "non-numeric min day entries",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("MEMORY_MIN_DAY_ENTRIES", "four")
			},
			wantErr: true,
		},
		{
			name: "zero embedding dimension",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("MEMORY_EMBED_DIM", "0")
			},
			wantErr: true,
		},
		{
			name: "min score out of range",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("MEMORY_MIN_SCORE", "1.5")
			},
			wantErr: true,
		},
		{
			name: "bad timeout",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("LLM_TIMEOUT", "soon")
			},
			wantErr: true,
		},
		{
			name: "unknown log format",
			setupEnv: func(t *testing.T) {
				t.Setenv("MEMORY_DATA_DIR", t.TempDir())
				t.Setenv("LOG_FORMAT", "xml")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.checkConfig != nil {
				tt.checkConfig(t, cfg)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MEMORY_TEST_KEY", "set")
	if got := getEnv("MEMORY_TEST_KEY", "default"); got != "set" {
		t.Errorf("getEnv() = %q, want %q", got, "set")
	}
	t.Setenv("MEMORY_TEST_KEY", "")
	if got := getEnv("MEMORY_TEST_KEY", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}
}
