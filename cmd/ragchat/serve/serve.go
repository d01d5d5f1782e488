// Package servecmder provides the serve command that runs the ragchat API
// server, the MCP endpoint and the document ingestion pipeline.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ragchat/pkg/config"
	"github.com/papercomputeco/ragchat/pkg/logger"
)

const logFileName = "ragchat.log"

type serveCommander struct {
	flags serveFlags

	configDir string
	debug     bool
	viper     *viper.Viper
	logger    *slog.Logger
}

// serveFlags holds the flag targets; resolved values are read from viper.
type serveFlags struct {
	listen, policy, storage, sqlitePath, postgresDSN, redisAddr string
	llmProvider, llmTarget, llmModel                            string
	vectorProvider, vectorTarget                                string
	embeddingProvider, embeddingTarget, embeddingModel          string
	uploadDir, eventStream, eventTarget, logDir                 string
	retrievalK, embeddingDims                                   uint
	watch                                                       bool
}

const serveLongDesc string = `Run the ragchat server.

Starts the HTTP API (chat, threads, checkpoints and document uploads), the
MCP endpoint on /mcp and prometheus metrics on /metrics. Threads whose last
turn was interrupted are resumed on start.

With --watch, files dropped into the upload directory are ingested in the
background and removed files have their chunks deleted.

Configuration is resolved from flags, RAGCHAT_* environment variables (a .env
file in the working directory is loaded first), config.toml and defaults, in
that order.

Examples:
  ragchat serve
  ragchat serve --policy grading --llm-provider openai --llm-model gpt-4o-mini
  ragchat serve --storage postgres --postgres postgres://localhost/ragchat
  ragchat serve --vector-store-provider qdrant --vector-store-target localhost:6334 --watch`

const serveShortDesc string = "Run the ragchat server"

var serveFlagKeys = []string{
	config.FlagListen, config.FlagPolicy, config.FlagStorage, config.FlagSQLite,
	config.FlagPostgres, config.FlagRedis, config.FlagRetrievalK,
	config.FlagLLMProvider, config.FlagLLMTarget, config.FlagLLMModel,
	config.FlagVectorStoreProv, config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel, config.FlagEmbeddingDims,
	config.FlagUploadDir, config.FlagWatch, config.FlagEventStream, config.FlagEventTarget, config.FlagLogDir,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPolicy, &f.policy)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorage, &f.storage)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRedis, &f.redisAddr)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagRetrievalK, &f.retrievalK)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLLMProvider, &f.llmProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLLMTarget, &f.llmTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLLMModel, &f.llmModel)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingProv, &f.embeddingProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingTgt, &f.embeddingTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEmbeddingDims, &f.embeddingDims)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUploadDir, &f.uploadDir)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagWatch, &f.watch)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventStream, &f.eventStream)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventTarget, &f.eventTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogDir, &f.logDir)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg := config.FromViper(c.viper)

	log, closeLog, err := newServerLogger(c.debug, cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer closeLog.Close()
	c.logger = log

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newStack(ctx, cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.logger.Error("failed to close resources", "error", err)
		}
	}()

	c.logger.Info("starting ragchat server",
		"listen", cfg.API.Listen,
		"policy", s.engine.Policy(),
		"upload_dir", s.ingester.Dir(),
		"watch", cfg.Ingest.Watch,
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := s.server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("upload watcher error: %w", err)
			}
		}()

		queued, err := s.syncUploads(ctx)
		if err != nil {
			c.logger.Warn("failed to sync uploads", "error", err)
		} else if queued > 0 {
			c.logger.Info("queued unindexed uploads", "count", queued)
		}
	}

	go func() {
		recovered, err := s.engine.RecoverAll(ctx)
		if err != nil {
			c.logger.Error("failed to resume interrupted threads", "error", err)
			return
		}
		if recovered > 0 {
			c.logger.Info("resumed interrupted threads", "count", recovered)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	if err := s.server.Shutdown(); err != nil {
		c.logger.Error("failed to shut down API server", "error", err)
	}
	return runErr
}

// newServerLogger returns the pretty stdout logger, joined with a rotated
// JSON file logger when logDir is set. The returned closer releases the file.
func newServerLogger(debug bool, logDir string) (*slog.Logger, io.Closer, error) {
	stdout := logger.New(logger.WithDebug(debug), logger.WithPretty(true))
	if logDir == "" {
		return stdout, io.NopCloser(nil), nil
	}

	file, err := logger.NewRotatingFile(filepath.Join(logDir, logFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return logger.Multi(stdout, logger.New(logger.WithDebug(debug), logger.WithJSON(true), logger.WithWriter(file))), file, nil
}
