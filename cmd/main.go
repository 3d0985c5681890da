package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"guideline-rag/internal/composer"
	"guideline-rag/internal/config"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/helper"
	"guideline-rag/internal/llmservice"
	"guideline-rag/internal/metrics"
	"guideline-rag/internal/models"
	"guideline-rag/internal/rag"
	"guideline-rag/internal/render"
	"guideline-rag/internal/server"
)

const defaultConfigFilePath = "./configs/config.yaml"

// fileList collects repeated -file flags.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var files fileList
	flag.Var(&files, "file", "Path to a document (repeatable)")
	query := flag.String("query", "", "Question to answer from the documents")
	topK := flag.Int("k", 0, "Number of chunks to retrieve (3-10, default from config)")
	configPath := flag.String("config", defaultConfigFilePath, "Path to the YAML config")
	format := flag.String("format", "text", "Answer format: text or html")
	dryRun := flag.Bool("dry-run", false, "Extract and chunk only, print the corpus summary")
	serve := flag.Bool("serve", false, "Serve the HTTP API instead of answering once")
	addr := flag.String("addr", "", "HTTP listen address (default from config)")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	setupLogger(*logLevel)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("rag", cfg.RAG).Str("embedding_provider", cfg.EmbedLLM.Provider).Bool("llm_enabled", cfg.LLMEnabled).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		if *addr == "" {
			*addr = cfg.Server.Addr
		}
		if err := runServer(ctx, cfg, *addr); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
		return
	}

	k := *topK
	if k == 0 {
		k = cfg.RAG.TopK
	}
	if *format != "text" && *format != "html" {
		log.Fatal().Str("format", *format).Msg("Format must be text or html")
	}

	sources := helper.ReadSources(files)
	if len(sources) == 0 {
		log.Info().Msg(models.AwaitingInput)
		return
	}

	opts := rag.ChunkOptions{Size: cfg.RAG.ChunkSize, Overlap: cfg.RAG.ChunkOverlap}
	if *dryRun {
		printCorpus(ctx, sources, opts)
		return
	}

	if err := answerOnce(ctx, cfg, sources, opts, *query, k, *format); err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
	}
}

func newComposer(cfg *config.Config) composer.Composer {
	var chat llms.Model
	if cfg.LLMEnabled {
		model, err := llmservice.NewChatModel(&cfg.InferenceLLM)
		if err != nil {
			log.Warn().Err(err).Msg("Error initializing chat model, answers will be extractive")
		} else {
			chat = model
		}
	}
	return composer.New(cfg, chat)
}

func runServer(ctx context.Context, cfg *config.Config, addr string) error {
	srv := server.New(cfg, embedding.NewConfigLoader(&cfg.EmbedLLM), newComposer(cfg), metrics.New())
	err := srv.Run(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func printCorpus(ctx context.Context, sources []models.Source, opts rag.ChunkOptions) {
	corpus, err := rag.BuildCorpus(ctx, sources, opts)
	if err != nil && !errors.Is(err, models.ErrEmptyCorpus) {
		log.Fatal().Err(err).Msg("Error building corpus")
	}
	if err != nil {
		log.Warn().Err(err).Msg("Corpus is empty")
	}
	log.Info().Msg("Parsed content")
	helper.PrettyPrint(map[string]any{
		"chunks":    corpus.Len(),
		"documents": corpus.Documents(),
		"skipped":   corpus.Skipped,
		"meta":      corpus.Meta,
	})
}

func answerOnce(ctx context.Context, cfg *config.Config, sources []models.Source, opts rag.ChunkOptions, query string, k int, format string) error {
	session := rag.NewSession(embedding.NewConfigLoader(&cfg.EmbedLLM), rag.Options{
		Chunk:    opts,
		Builder:  rag.IndexBuilder(cfg.RAG),
		Composer: newComposer(cfg),
	})
	status, err := session.Load(ctx, sources)
	if err != nil {
		return err
	}
	if query == "" {
		log.Info().Int("chunks", status.Chunks).Strs("documents", status.Documents).Msg("Documents indexed, pass -query to ask a question")
		return nil
	}

	answer, err := session.Ask(ctx, query, k)
	if err != nil {
		return err
	}

	if format == "html" {
		out, err := render.HTML(answer)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Println(render.Text(answer))
	return nil
}
