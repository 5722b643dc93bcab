package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Yulian302/lfusys-services-studio/caching"
	"github.com/Yulian302/lfusys-services-studio/handlers"
	"github.com/Yulian302/lfusys-services-studio/health"
	"github.com/Yulian302/lfusys-services-studio/pdf"
	"github.com/Yulian302/lfusys-services-studio/queues"
	"github.com/Yulian302/lfusys-services-studio/services"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
)

const (
	apiBasePath      = "/api"
	readinessPeriod  = 5 * time.Second
	readinessTimeout = 500 * time.Millisecond
)

type Stores struct {
	objects store.ObjectStorage
	uploads store.UploadStore
	spool   *store.Spool
	blobs   *store.BlobStore
}

type Services struct {
	Uploads services.UploadService
	Forms   *services.FormServiceImpl
	History services.UploadHistoryService
	Decks   *services.DeckServiceImpl

	Stores  *Stores
	Monitor *health.Monitor

	Handler *handlers.HttpHandler
}

func BuildServices(app *App) (*Services, error) {
	clk := clock.New()
	cfg := app.Config

	objectStore := store.NewS3ObjectStorageImpl(app.S3, cfg.S3Config.Bucket, app.Logger)
	uploadStore := store.NewDynamoDbUploadStoreImpl(app.DynamoDB, cfg.DynamoDBConfig.UploadsTableName)
	spool, err := store.NewSpool(cfg.SlidesConfig.SpoolDir)
	if err != nil {
		return nil, err
	}
	blobs := store.NewBlobStore(spool)

	checks := []health.ReadinessCheck{objectStore, uploadStore}

	var cachingSvc caching.CachingService
	if app.Redis != nil {
		redisCache := caching.NewRedisCachingService(app.Redis)
		checks = append(checks, redisCache)
		cachingSvc = redisCache
	} else {
		cachingSvc = caching.NewNullCachingService()
	}

	notifier := queues.NewUploadsNotifierImpl(app.Sqs, cfg.SQSConfig.QueueURL, app.Logger)

	opts := []services.UploadServiceOption{
		services.WithLedger(uploadStore),
		services.WithCache(cachingSvc),
		services.WithClock(clk),
	}
	if app.InitErr != nil {
		opts = append(opts, services.WithInitError(app.InitErr))
	}
	uploadSvc := services.NewUploadServiceImpl(objectStore, notifier, cfg.S3Config.Prefix, app.Logger, opts...)
	formSvc := services.NewFormServiceImpl(uploadSvc, clk, app.Logger)
	historySvc := services.NewUploadHistoryServiceImpl(uploadStore, objectStore, cachingSvc, cfg.RedisConfig.TTL, app.Logger)

	renderer := pdf.NewFitzRenderer(cfg.SlidesConfig.RenderScale)
	deckSvc := services.NewDeckServiceImpl(renderer, blobs, cfg.SlidesConfig.VideoMimeType, apiBasePath, clk, app.Logger)

	monitor := health.NewMonitor(readinessPeriod, readinessTimeout, checks...)

	handler := handlers.NewHttpHandler(
		formSvc,
		historySvc,
		deckSvc,
		spool,
		monitor,
		cfg.ServiceConfig.MaxUploadMB<<20,
		clk,
		app.Logger,
	)

	return &Services{
		Uploads: uploadSvc,
		Forms:   formSvc,
		History: historySvc,
		Decks:   deckSvc,

		Stores: &Stores{
			objects: objectStore,
			uploads: uploadStore,
			spool:   spool,
			blobs:   blobs,
		},
		Monitor: monitor,

		Handler: handler,
	}, nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if s.Forms != nil {
		s.Forms.Shutdown()
	}
	if s.Decks != nil {
		s.Decks.Shutdown()
	}
	return s.Stores.Shutdown(ctx)
}

// Shutdown reports video blobs that outlived their decks.
func (s *Stores) Shutdown(ctx context.Context) error {
	if s == nil || s.blobs == nil {
		return nil
	}
	if live := s.blobs.Live(); live > 0 {
		return fmt.Errorf("%d video blobs still held after shutdown", live)
	}
	return nil
}
