package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/cloud"
	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/database"
	"github.com/kozaktomas/sketch-match/internal/database/postgres"
	"github.com/kozaktomas/sketch-match/internal/matcher"
	"github.com/kozaktomas/sketch-match/internal/proxyapi"
	"github.com/kozaktomas/sketch-match/internal/recognition"
	"github.com/kozaktomas/sketch-match/internal/storage"
)

// awsServices holds the clients a direct-backend command uses for its whole lifetime.
type awsServices struct {
	store      *storage.S3Store
	recognizer *recognition.Rekognition
	registry   database.RegistryWriter // nil without DATABASE_URL
	pool       *postgres.Pool
}

// newAWSServices builds the S3 and Rekognition clients once, and connects the face
// registry when a database is configured.
func newAWSServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*awsServices, error) {
	awsCfg, err := cloud.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	svc := &awsServices{
		store:      storage.NewS3Store(cloud.NewS3Client(awsCfg, cfg.AWS.Endpoint), cfg.Storage.Bucket),
		recognizer: recognition.NewRekognition(cloud.NewRekognitionClient(awsCfg, cfg.AWS.Endpoint)),
	}

	if cfg.Database.URL == "" {
		logger.Debug("DATABASE_URL not set, face registry disabled")
		return svc, nil
	}

	pool, err := postgres.Initialize(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	svc.pool = pool

	registry, err := database.GetRegistry(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get face registry: %w", err)
	}
	svc.registry = registry
	logger.Debug("face registry enabled")
	return svc, nil
}

// Close releases the database pool, if any.
func (s *awsServices) Close() {
	if s.pool != nil {
		s.pool.Close()
		database.RegisterPostgresBackend(nil)
	}
}

// registryReader returns the registry as a reader, or a nil interface when disabled.
func (s *awsServices) registryReader() database.RegistryReader {
	if s.registry == nil {
		return nil
	}
	return s.registry
}

// newBackend builds the search backend selected by cfg.Backend.
// The returned close function releases any clients the backend holds.
func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (matcher.Backend, func(), error) {
	if cfg.Backend == config.BackendProxy {
		client, err := proxyapi.NewWithCapture(cfg.Proxy.URL, cfg.Proxy.PrefixToken,
			time.Duration(cfg.Proxy.TimeoutSec)*time.Second, captureDir)
		if err != nil {
			return nil, nil, err
		}
		return matcher.NewProxyBackend(client), func() {}, nil
	}

	svc, err := newAWSServices(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	backend := matcher.NewDirectBackend(cfg, svc.store, svc.recognizer, svc.registryReader(), logger)
	return backend, svc.Close, nil
}
