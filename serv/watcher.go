package serv

import (
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// initSchemaWatcher starts the schema file watcher
func (s *Service) initSchemaWatcher() {
	// no schema polling in production
	if s.conf.Production {
		return
	}

	ps := s.conf.SchemaPollDuration

	switch {
	case ps < (1 * time.Second):
		return

	case ps < (5 * time.Second):
		ps = 10 * time.Second
	}

	go s.startSchemaWatcher(ps)
}

// startSchemaWatcher polls the schema file and reloads the engine
// when its contents change.
func (s *Service) startSchemaWatcher(ps time.Duration) {
	ticker := time.NewTicker(ps)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		b, err := afero.ReadFile(s.fs, s.conf.SchemaFile)
		if err != nil {
			s.log.Warn("schema poll failed", zap.Error(err))
			continue
		}

		if schemaHash(b) == s.schemaHash {
			continue
		}

		s.reloadMu.Lock()
		// Re-check after lock; another reload may have already picked
		// up this change
		if schemaHash(b) != s.schemaHash {
			s.log.Info("schema change detected. reinitializing...")
			if err := s.loadEngine(); err != nil {
				s.log.Error("schema reload failed", zap.Error(err))
			}
		}
		s.reloadMu.Unlock()
	}
}
