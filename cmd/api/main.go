package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/surfpix/order-service/internal/blob"
	"github.com/surfpix/order-service/internal/config"
	"github.com/surfpix/order-service/internal/events"
	"github.com/surfpix/order-service/internal/fulfillment"
	"github.com/surfpix/order-service/internal/httpx"
	"github.com/surfpix/order-service/internal/mailer"
	"github.com/surfpix/order-service/internal/orders"
	"github.com/surfpix/order-service/internal/payment"
	"github.com/surfpix/order-service/internal/postgres"
	"github.com/surfpix/order-service/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Asset bucket
	blobs, err := blob.NewS3Store(ctx, cfg.AssetBucket, cfg.AWSRegion, cfg.PublicAssetBase)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	// Kafka producer (fulfillment event stream)
	prod := events.NewProducer(cfg.KafkaBrokers, events.TopicOrderFulfillment, 1024)
	prod.Start(ctx)

	// Clients constructed once per process, read-only thereafter.
	payments := payment.NewClient(cfg.PaymentAPIBase, cfg.PaymentAPIKey)
	mail := mailer.NewClient(cfg.EmailAPIBase, cfg.EmailAPIKey)

	repo := &orders.Repo{DB: db}
	pipeline := &fulfillment.Service{
		Store:       repo,
		Payments:    payments,
		Mail:        mail,
		Blobs:       blobs,
		Events:      prod,
		From:        cfg.EmailFrom,
		OpsEmail:    cfg.OpsEmail,
		ServiceName: cfg.ServiceName,
		DownloadTTL: cfg.DownloadTTL,
		Log:         logger,
	}

	router := httpx.NewRouter()
	fh := &httpx.FulfillmentHandler{
		Pipeline:      pipeline,
		Repo:          repo,
		Blobs:         blobs,
		Redis:         rdb,
		Log:           logger,
		WebhookSecret: cfg.WebhookSecret,
		Timeout:       cfg.DBTimeout,
	}
	fh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
