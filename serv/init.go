package serv

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dosco/reljin/mongostore"
	"github.com/dosco/reljin/serv/internal/util"
)

// initLogger builds the logger from the config
func initLogger(s *Service) {
	var level zapcore.Level

	switch s.conf.LogLevel {
	case "debug":
		level = zap.DebugLevel
	case "warn":
		level = zap.WarnLevel
	case "error":
		level = zap.ErrorLevel
	default:
		level = zap.InfoLevel
	}

	log := util.NewLogger(s.conf.LogFormat == "json", level)
	if s.conf.AppName != "" {
		log = log.With(zap.String("app", s.conf.AppName))
	}
	s.log = log
}

// validateConf validates the configuration and fills safe fallbacks
func validateConf(s *Service) {
	if !isDatabaseConfigured(s.conf) {
		s.log.Warn("no database configured. set database.connection_string or database.host and database.dbname")
	}
	if s.conf.SchemaFile == "" {
		s.log.Warn("no schema_file configured. relation resolution needs a schema")
	}
	if s.conf.BatchConcurrency < 1 {
		s.conf.BatchConcurrency = 8
	}
}

// connectStore connects to MongoDB, retrying the initial ping. The
// engine itself never retries; only this bootstrap does.
func connectStore(ctx context.Context, s *Service) (*mongostore.Store, error) {
	dbName := s.conf.dbName()
	if dbName == "" {
		return nil, fmt.Errorf("no database name configured")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(s.conf.connString()))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	attempts := s.conf.DB.ConnectRetries
	if attempts == 0 {
		attempts = 3
	}
	timeout := s.conf.DB.ConnectTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	err = retry.Do(
		func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return client.Ping(pctx, nil)
		},
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("mongodb ping failed, retrying",
				zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	s.log.Info("connected to mongodb", zap.String("database", dbName))
	return mongostore.New(client.Database(dbName)), nil
}

// schemaHash fingerprints the schema file contents for change
// detection by the watcher.
func schemaHash(b []byte) [sha256.Size]byte {
	return sha256.Sum256(b)
}
