// Package file loads application settings from a TOML file, with
// secrets taken from the environment. A .env file next to the config
// is honoured for local development.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shokudev/kura/internal/logger"
)

// Default settings values.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 10

	DefaultSweepInterval  = "10m"
	DefaultSweepThreshold = "10m"

	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
)

// Settings is the full application configuration. Everything here is
// safe to keep in the config file; API keys and account keys come from
// the environment only.
type Settings struct {
	// DataDir holds the metadata database (default: ~/.kura/data).
	DataDir string `toml:"data_dir"`

	Chunking ChunkingSettings `toml:"chunking"`
	Search   SearchSettings   `toml:"search"`
	Storage  StorageSettings  `toml:"storage"`
	OpenAI   OpenAISettings   `toml:"openai"`
	Sweep    SweepSettings    `toml:"sweep"`
	Watch    WatchSettings    `toml:"watch"`

	// Secrets resolved from the environment, never from TOML.
	OpenAIAPIKey      string `toml:"-"`
	SearchAPIKey      string `toml:"-"`
	StorageAccountKey string `toml:"-"`
}

// ChunkingSettings controls how extracted text is split.
type ChunkingSettings struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// SearchSettings configures the Azure AI Search index.
type SearchSettings struct {
	Endpoint  string `toml:"endpoint"`
	IndexName string `toml:"index_name"`
	TopK      int    `toml:"top_k"`
}

// StorageSettings configures where original files are kept. Backend is
// "fs" or "azure".
type StorageSettings struct {
	Backend     string `toml:"backend"`
	BlobRoot    string `toml:"blob_root"`
	AccountName string `toml:"account_name"`
	Container   string `toml:"container"`
}

// OpenAISettings configures the embedding and generation models. When
// AzureEndpoint is set the Azure OpenAI service is used.
type OpenAISettings struct {
	AzureEndpoint  string `toml:"azure_endpoint"`
	EmbeddingModel string `toml:"embedding_model"`
	ChatModel      string `toml:"chat_model"`
}

// SweepSettings controls the stale-document sweeper. Interval and
// Threshold are durations such as "10m" or "1h".
type SweepSettings struct {
	Interval  string `toml:"interval"`
	Threshold string `toml:"threshold"`
}

// WatchSettings configures the drop-directory watcher.
type WatchSettings struct {
	Dir string `toml:"dir"`
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		Chunking: ChunkingSettings{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		Search:   SearchSettings{TopK: DefaultTopK},
		Storage:  StorageSettings{Backend: "fs"},
		OpenAI: OpenAISettings{
			EmbeddingModel: DefaultEmbeddingModel,
			ChatModel:      DefaultChatModel,
		},
		Sweep: SweepSettings{Interval: DefaultSweepInterval, Threshold: DefaultSweepThreshold},
	}
}

// Load reads settings from configDir/config.toml, merged over the
// defaults. A missing file is not an error. If configDir is empty,
// ~/.kura is used.
func Load(configDir string) (Settings, error) {
	settings := Defaults()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return settings, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".kura")
	}

	path := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Debug("no config file at %s, using defaults", path)
	case err != nil:
		return settings, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A .env in the config directory is convenient for development.
	// Variables already exported win.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err == nil {
		logger.Debug("loaded environment from %s", filepath.Join(configDir, ".env"))
	}

	settings.applyEnvironment()
	return settings, nil
}

// applyEnvironment pulls secrets and endpoint overrides from the
// environment.
func (s *Settings) applyEnvironment() {
	s.OpenAIAPIKey = firstEnv("KURA_OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY")
	s.SearchAPIKey = firstEnv("KURA_SEARCH_API_KEY", "AZURE_SEARCH_API_KEY")
	s.StorageAccountKey = firstEnv("KURA_STORAGE_ACCOUNT_KEY", "AZURE_STORAGE_ACCOUNT_KEY")

	if v := os.Getenv("KURA_SEARCH_ENDPOINT"); v != "" {
		s.Search.Endpoint = v
	}
	if v := os.Getenv("KURA_OPENAI_AZURE_ENDPOINT"); v != "" {
		s.OpenAI.AzureEndpoint = v
	}
	if v := os.Getenv("KURA_DATA_DIR"); v != "" {
		s.DataDir = v
	}
}

// SweepInterval parses the sweep interval, falling back to the default
// on a malformed value.
func (s Settings) SweepInterval() time.Duration {
	return parseDuration(s.Sweep.Interval, DefaultSweepInterval)
}

// SweepThreshold parses the stuck-document age threshold.
func (s Settings) SweepThreshold() time.Duration {
	return parseDuration(s.Sweep.Threshold, DefaultSweepThreshold)
}

func parseDuration(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("invalid default duration %q", fallback))
	}
	logger.Warn("invalid duration %q, using %s", value, fallback)
	return d
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
