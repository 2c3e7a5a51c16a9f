package app

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"instafeed/internal/config"
	"instafeed/internal/database"
	"instafeed/internal/events"
	"instafeed/internal/metrics"
	"instafeed/internal/repository"
	"instafeed/internal/service"
	"instafeed/internal/storage"
)

var logger = loggo.GetLogger("instafeed.app")

// App holds every long-lived dependency of the server.
type App struct {
	DB       *database.DB
	Mongo    *database.Mongo
	Storage  *storage.MinIOClient
	Hub      *events.Hub
	Metrics  *metrics.Metrics
	Repo     *repository.Repository
	Services *service.Service
}

// New connects to Postgres, MongoDB and MinIO and builds the services on top.
func New(cfg *config.Config) (*App, error) {
	db, err := database.ConnectDB(cfg)
	if err != nil {
		return nil, errors.Annotate(err, "connecting to postgres")
	}

	docs, err := database.ConnectMongo(cfg)
	if err != nil {
		db.CloseDB()
		return nil, errors.Annotate(err, "connecting to mongo")
	}

	minioClient, err := storage.NewMinIOClient(cfg)
	if err != nil {
		db.CloseDB()
		docs.Close(context.Background())
		return nil, errors.Annotate(err, "initializing minio")
	}

	m, err := metrics.New()
	if err != nil {
		db.CloseDB()
		docs.Close(context.Background())
		return nil, errors.Trace(err)
	}

	hub := events.NewHub()
	repo := repository.NewRepository(db.DB, docs.Database)
	services := service.NewService(repo, cfg, minioClient, hub, m, clock.WallClock)

	return &App{
		DB:       db,
		Mongo:    docs,
		Storage:  minioClient,
		Hub:      hub,
		Metrics:  m,
		Repo:     repo,
		Services: services,
	}, nil
}

// Migrate applies the Postgres schema, creates the Mongo indexes and makes
// sure the image bucket exists.
func (a *App) Migrate(ctx context.Context, cfg *config.Config) error {
	if err := a.DB.RunMigrations(cfg.MigrationsPath); err != nil {
		return errors.Annotate(err, "postgres migrations")
	}
	if err := a.Mongo.EnsureIndexes(ctx); err != nil {
		return errors.Annotate(err, "mongo indexes")
	}
	if err := a.Storage.EnsureBucket(ctx, cfg.MinIO.Region); err != nil {
		return errors.Annotate(err, "minio bucket")
	}
	return nil
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Mongo.Close(ctx); err != nil {
		logger.Warningf("closing mongo: %v", err)
	}
	if err := a.DB.CloseDB(); err != nil {
		logger.Warningf("closing postgres: %v", err)
	}
}
