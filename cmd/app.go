package cmd

import (
	"context"
	"fmt"

	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/config"
	"github.com/teemow/inboxintake/internal/google"
	"github.com/teemow/inboxintake/internal/importer"
	"github.com/teemow/inboxintake/internal/instrumentation"
	"github.com/teemow/inboxintake/internal/server"
	"github.com/teemow/inboxintake/internal/session"
	"github.com/teemow/inboxintake/internal/storage"
)

// components are the collaborators shared by serve and import. OAuth,
// Metadata and Importer are nil when the corresponding integration is not
// configured.
type components struct {
	Classifier *classifier.Classifier
	OAuth      *google.OAuth
	Sessions   session.Store
	Objects    storage.ObjectStore
	Metadata   *storage.PostgresStore
	Importer   *importer.Service

	// Checks are readiness probes for external dependencies.
	Checks map[string]server.CheckFunc
}

// buildComponents wires every collaborator from c. Resources that need
// releasing are handed to onClose.
func buildComponents(ctx context.Context, c *config.Config, metrics *instrumentation.Metrics, onClose func(func())) (*components, error) {
	comps := &components{Checks: make(map[string]server.CheckFunc)}

	var err error
	if comps.Classifier, err = buildClassifier(ctx, c, metrics); err != nil {
		return nil, err
	}
	if comps.Sessions, err = buildSessionStore(ctx, c, comps, onClose); err != nil {
		return nil, err
	}
	if comps.OAuth, err = buildOAuth(c); err != nil {
		return nil, err
	}
	if err := buildStorage(ctx, c, comps, onClose); err != nil {
		return nil, err
	}

	if comps.OAuth == nil || comps.Metadata == nil {
		logger.Warn("gmail import disabled",
			"gmail_configured", comps.OAuth != nil,
			"storage_configured", comps.Metadata != nil,
		)
		return comps, nil
	}

	comps.Importer, err = importer.NewService(importer.Config{
		Sessions:    comps.Sessions,
		Locker:      session.NewKeyedMutex(),
		Mailboxes:   &importer.GmailFactory{OAuth: comps.OAuth, Recorder: metrics},
		Classifier:  comps.Classifier,
		Objects:     comps.Objects,
		Metadata:    comps.Metadata,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: c.Import.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create importer: %w", err)
	}
	return comps, nil
}

func buildClassifier(ctx context.Context, c *config.Config, metrics *instrumentation.Metrics) (*classifier.Classifier, error) {
	if c.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEN_AI_API_KEY is required")
	}
	model, err := classifier.NewGeminiModel(ctx, classifier.GeminiConfig{
		APIKey:   c.Gemini.APIKey,
		Model:    c.Gemini.Model,
		Timeout:  c.Gemini.Timeout,
		Recorder: metrics,
	})
	if err != nil {
		return nil, err
	}
	return classifier.New(model,
		classifier.WithPageRenderer(classifier.NewPdftoppmRenderer(c.PDF.PdftoppmPath, c.PDF.RenderTimeout)),
		classifier.WithLogger(logger),
		classifier.WithMetrics(metrics),
	), nil
}

func buildSessionStore(ctx context.Context, c *config.Config, comps *components, onClose func(func())) (session.Store, error) {
	switch c.Session.Store {
	case config.SessionStoreRedis:
		rdb, err := session.NewRedisClient(ctx, c.Session.RedisURL)
		if err != nil {
			return nil, err
		}
		onClose(func() { _ = rdb.Close() })
		comps.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return session.NewRedisStore(rdb, c.Session.TTL), nil
	default:
		store := session.NewMemoryStore(c.Session.TTL, logger)
		onClose(store.Stop)
		return store, nil
	}
}

// buildOAuth returns nil when no OAuth client is configured.
func buildOAuth(c *config.Config) (*google.OAuth, error) {
	switch {
	case c.Gmail.ClientID != "" && c.Gmail.ClientSecret != "":
		return google.NewOAuth(c.Gmail.ClientID, c.Gmail.ClientSecret, c.Gmail.RedirectURL)
	case c.GmailConfigured():
		return google.NewOAuthFromFile(c.Gmail.ClientSecretsFile, c.Gmail.RedirectURL)
	default:
		return nil, nil
	}
}

// buildStorage leaves Objects and Metadata nil when storage is not configured.
func buildStorage(ctx context.Context, c *config.Config, comps *components, onClose func(func())) error {
	if !c.StorageConfigured() {
		return nil
	}

	objects, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          c.Storage.Bucket,
		Region:          c.Storage.Region,
		Endpoint:        c.Storage.Endpoint,
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
	})
	if err != nil {
		return err
	}

	pool, err := storage.NewPool(ctx, c.Database.URL)
	if err != nil {
		return err
	}
	onClose(pool.Close)
	comps.Checks["database"] = pool.Ping

	metadata, err := storage.NewPostgresStore(ctx, pool)
	if err != nil {
		return err
	}

	comps.Objects, comps.Metadata = objects, metadata
	return nil
}
