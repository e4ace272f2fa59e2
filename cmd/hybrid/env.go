package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/drakos74/hybrid-digits/infra/config"
	"github.com/drakos74/hybrid-digits/internal/dataset"
	"github.com/drakos74/hybrid-digits/internal/metrics"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/session"
	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/drakos74/hybrid-digits/internal/storage/badger"
	jsonstorage "github.com/drakos74/hybrid-digits/internal/storage/file/json"
	"github.com/drakos74/hybrid-digits/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	archiveSQLite = "sqlite"
	archiveBadger = "badger"
	archiveJSON   = "json"
)

func setupLogging(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	file, _ := cmd.Flags().GetString("log-file")

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return nil
}

// env holds the collaborators of a session.
type env struct {
	session *session.Session
	archive storage.Archive
	metrics *metrics.Metrics
}

func (e *env) Close() {
	if err := e.archive.Close(); err != nil {
		log.Error().Err(err).Msg("could not close archive")
	}
}

func openArchive(kind, dir string) (storage.Archive, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}
	registry := jsonstorage.NewEventRegistry("session").WithDir(dir)
	switch kind {
	case archiveSQLite:
		db, err := sqlite.Open(filepath.Join(dir, "hybrid.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case archiveBadger:
		kv, err := badger.Open(filepath.Join(dir, "badger"), storage.ArchiveTable)
		if err != nil {
			return nil, err
		}
		return storage.NewKVArchive(kv, registry), nil
	case archiveJSON:
		blob := jsonstorage.NewJsonBlob(storage.ArchiveTable, "session", false).WithPath(dir)
		return storage.NewKVArchive(blob, registry), nil
	}
	return nil, fmt.Errorf("unknown archive '%s'", kind)
}

func openSource(cmd *cobra.Command) (dataset.Source, error) {
	dir, _ := cmd.Flags().GetString("mnist")
	seed, _ := cmd.Flags().GetInt64("seed")
	if dir == "" {
		return dataset.NewGlyphs(seed), nil
	}
	return dataset.LoadMNIST(dir, seed)
}

func openEnv(cmd *cobra.Command) (*env, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	kind, _ := cmd.Flags().GetString("archive")

	source, err := openSource(cmd)
	if err != nil {
		return nil, fmt.Errorf("could not open digit source: %w", err)
	}
	archive, err := openArchive(kind, dir)
	if err != nil {
		return nil, fmt.Errorf("could not open archive: %w", err)
	}
	models := jsonstorage.NewJsonBlob(storage.ModelsTable, "extractor", false).WithPath(dir)
	s, err := session.New(source, archive, models, metrics.Observer)
	if err != nil {
		archive.Close()
		return nil, err
	}
	return &env{
		session: s,
		archive: archive,
		metrics: metrics.Observer,
	}, nil
}

// restore loads the archived model, reporting only unexpected failures.
func (e *env) restore() error {
	err := e.session.Restore()
	if errors.Is(err, model.ModelNotReadyErr) {
		log.Warn().Err(err).Msg("no model archived")
		return nil
	}
	return err
}

func loadConfig(cmd *cobra.Command) (model.SystemConfig, error) {
	file, _ := cmd.Flags().GetString("config")
	if file != "" {
		return config.Load(file)
	}
	cfg := model.DefaultConfig()
	if _, err := os.Stat(filepath.Join("infra", "config", "hybrid.json")); err == nil {
		config.MustLoad("hybrid", &cfg)
	}
	return cfg, cfg.Validate()
}
