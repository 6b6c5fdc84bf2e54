// Package cli provides the kura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	azureblob "github.com/shokudev/kura/internal/adapters/driven/blob/azure"
	fsblob "github.com/shokudev/kura/internal/adapters/driven/blob/fs"
	"github.com/shokudev/kura/internal/adapters/driven/config/file"
	"github.com/shokudev/kura/internal/adapters/driven/searchindex/azure"
	"github.com/shokudev/kura/internal/adapters/driven/storage/sqlite"
	"github.com/shokudev/kura/internal/adapters/driven/taskqueue"
	"github.com/shokudev/kura/internal/chunker"
	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/core/ports/driving"
	"github.com/shokudev/kura/internal/core/services"
	"github.com/shokudev/kura/internal/extractors"
	"github.com/shokudev/kura/internal/extractors/docx"
	"github.com/shokudev/kura/internal/extractors/image"
	"github.com/shokudev/kura/internal/extractors/pdf"
	"github.com/shokudev/kura/internal/extractors/pptx"
	"github.com/shokudev/kura/internal/extractors/xlsx"
	"github.com/shokudev/kura/internal/logger"

	openaiadapter "github.com/shokudev/kura/internal/adapters/driven/ai/openai"
)

var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
)

// Wired services. Tests inject stubs and set servicesReady.
var (
	settings      file.Settings
	ingestService driving.IngestService
	queryService  driving.QueryService
	searchIndex   driven.SearchIndex
	queueWait     func()
	teardown      func()
	servicesReady bool
)

var rootCmd = &cobra.Command{
	Use:   "kura",
	Short: "Knowledge base for food development records",
	Long: `kura ingests food development documents (trial worksheets, reports,
presentations), indexes them for hybrid text and vector search, and
answers questions grounded in the retrieved records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" {
			return nil
		}
		return ensureServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.kura)")
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if teardown != nil {
			teardown()
		}
	}()
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	version = v
}

// ensureServices wires the real adapters into the core services.
// Services whose backend is not configured stay nil; the commands that
// need them report that instead of failing here.
func ensureServices() error {
	if servicesReady {
		return nil
	}

	var err error
	settings, err = file.Load(configDir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	teardown = func() { _ = store.Close() }
	docStore := store.DocumentStore()

	blobStore, err := buildBlobStore()
	if err != nil {
		return err
	}

	if settings.Search.Endpoint != "" && settings.SearchAPIKey != "" {
		searchIndex, err = azure.NewIndex(azure.Config{
			Endpoint:  settings.Search.Endpoint,
			APIKey:    settings.SearchAPIKey,
			IndexName: settings.Search.IndexName,
		})
		if err != nil {
			return fmt.Errorf("configure search index: %w", err)
		}
	} else {
		logger.Warn("search index not configured; indexing and retrieval are disabled")
	}

	var embeddings driven.EmbeddingService
	var generator driven.GenerationService
	if settings.OpenAIAPIKey != "" {
		embeddings, err = openaiadapter.NewEmbeddingService(openaiadapter.EmbeddingConfig{
			APIKey:        settings.OpenAIAPIKey,
			AzureEndpoint: settings.OpenAI.AzureEndpoint,
			Model:         settings.OpenAI.EmbeddingModel,
		})
		if err != nil {
			return fmt.Errorf("configure embeddings: %w", err)
		}
		generator, err = openaiadapter.NewGenerationService(openaiadapter.GenerationConfig{
			APIKey:        settings.OpenAIAPIKey,
			AzureEndpoint: settings.OpenAI.AzureEndpoint,
			Model:         settings.OpenAI.ChatModel,
		})
		if err != nil {
			return fmt.Errorf("configure generation: %w", err)
		}
	} else {
		logger.Warn("no OpenAI API key; embedding and answer generation are disabled")
	}

	registry := extractors.NewRegistry()
	registry.Register(xlsx.New(xlsx.Config{}))
	registry.Register(docx.New())
	registry.Register(pptx.New())
	registry.Register(pdf.New())
	registry.Register(image.New())

	splitter := chunker.New(
		chunker.WithChunkSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)

	orchestrator := services.NewIngestOrchestrator(
		docStore, blobStore, searchIndex, embeddings, registry, splitter,
	)
	runner := taskqueue.NewRunner(orchestrator.Process)
	orchestrator.SetQueue(runner)
	queueWait = runner.Wait

	retrieval := services.NewRetrievalService(docStore, searchIndex, embeddings, generator)
	retrieval.SetTopK(settings.Search.TopK)

	ingestService = orchestrator
	queryService = retrieval
	servicesReady = true
	return nil
}

func buildBlobStore() (driven.BlobStore, error) {
	switch settings.Storage.Backend {
	case "azure":
		store, err := azureblob.NewStore(azureblob.Config{
			AccountName: settings.Storage.AccountName,
			AccountKey:  settings.StorageAccountKey,
			Container:   settings.Storage.Container,
		})
		if err != nil {
			return nil, fmt.Errorf("configure blob storage: %w", err)
		}
		return store, nil
	case "", "fs":
		store, err := fsblob.NewStore(settings.Storage.BlobRoot)
		if err != nil {
			return nil, fmt.Errorf("open blob directory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", settings.Storage.Backend)
	}
}
