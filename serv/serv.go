// Package serv wires the relation query engine to its runtime
// dependencies: configuration, logging, the MongoDB store and the
// schema file, with optional hot-reload of the schema.
package serv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dosco/reljin/core"
	"github.com/dosco/reljin/mongostore"
)

// Service owns a configured engine and its collaborators. The engine
// is swapped atomically when the schema file changes, so callers
// must fetch it per request via Engine.
type Service struct {
	conf  *Config
	log   *zap.Logger
	store *mongostore.Store
	fs    afero.Fs

	engine     atomic.Value // *core.RefQuery
	schemaHash [32]byte
	reloadMu   sync.Mutex
	done       chan struct{}
	closeOnce  sync.Once
}

// ServiceOption configures a Service before it starts.
type ServiceOption func(*Service) error

// OptionSetFS sets the filesystem the schema file is read from.
func OptionSetFS(fs afero.Fs) ServiceOption {
	return func(s *Service) error {
		s.fs = fs
		return nil
	}
}

// OptionSetLogger replaces the logger built from the config.
func OptionSetLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) error {
		s.log = log
		return nil
	}
}

// OptionSetStore replaces the store built from the config. Used by
// tests and by callers that manage their own client.
func OptionSetStore(store *mongostore.Store) ServiceOption {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// NewService builds a Service from the config: logger, store
// connection (with retries), schema load and engine construction.
func NewService(ctx context.Context, conf *Config, options ...ServiceOption) (*Service, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is nil")
	}

	s := &Service{
		conf: conf,
		fs:   afero.NewOsFs(),
		done: make(chan struct{}),
	}
	initLogger(s)

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	validateConf(s)

	if s.store == nil {
		store, err := connectStore(ctx, s)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	if err := s.loadEngine(); err != nil {
		return nil, err
	}

	s.initSchemaWatcher()
	return s, nil
}

// Engine returns the current engine. Do not hold the returned value
// across schema reloads.
func (s *Service) Engine() *core.RefQuery {
	return s.engine.Load().(*core.RefQuery)
}

// Store returns the underlying store.
func (s *Service) Store() *mongostore.Store {
	return s.store
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger {
	return s.log
}

// Close stops the schema watcher and disconnects the store client.
func (s *Service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.store != nil {
			err = s.store.Client().Disconnect(ctx)
		}
	})
	return err
}

// loadEngine reads the schema file, validates it and swaps in a new
// engine built on it.
func (s *Service) loadEngine() error {
	b, err := afero.ReadFile(s.fs, s.conf.SchemaFile)
	if err != nil {
		return fmt.Errorf("schema %s: %w", s.conf.SchemaFile, err)
	}

	schema, err := core.ParseSchema(b)
	if err != nil {
		return err
	}
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("schema %s: %w", s.conf.SchemaFile, err)
	}

	engine, err := core.New(schema, s.store,
		core.OptionSetLogger(s.log),
		core.OptionSetBatchConcurrency(s.conf.BatchConcurrency))
	if err != nil {
		return err
	}

	s.schemaHash = schemaHash(b)
	s.engine.Store(engine)

	s.log.Info("schema loaded",
		zap.String("file", s.conf.SchemaFile),
		zap.Int("collections", len(schema.Collections())))
	return nil
}
