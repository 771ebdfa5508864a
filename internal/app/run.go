package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/cache"
	"github.com/MrCodingRobot/EmergencyStations/internal/config"
	"github.com/MrCodingRobot/EmergencyStations/internal/db"
	"github.com/MrCodingRobot/EmergencyStations/internal/httpapi"
	"github.com/MrCodingRobot/EmergencyStations/internal/mail"
	"github.com/MrCodingRobot/EmergencyStations/internal/migrate"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/repository"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/service"
	"github.com/MrCodingRobot/EmergencyStations/internal/mqtt"
	"github.com/MrCodingRobot/EmergencyStations/internal/notify"
	"github.com/MrCodingRobot/EmergencyStations/internal/publish"
	"github.com/MrCodingRobot/EmergencyStations/internal/upload"
)

// store is an opened repository together with its health check and closer.
type store struct {
	repo  repository.StationRepository
	ping  httpapi.PingFunc
	close func()
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	if cfg.Driver == "postgres" {
		pool, err := db.OpenPostgres(ctx, cfg)
		if err != nil {
			return store{}, err
		}
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return store{}, err
		}
		return store{repo: repository.NewPostgresRepository(pool), ping: pool.Ping, close: pool.Close}, nil
	}

	dbConn, err := db.Open(cfg)
	if err != nil {
		return store{}, err
	}
	applied, err := migrate.Run(ctx, dbConn)
	if err != nil {
		_ = db.Close(dbConn)
		return store{}, err
	}
	for _, m := range applied {
		slog.Info("migration applied", "version", m.Version, "name", m.Name)
	}
	return store{
		repo: repository.NewRepository(dbConn),
		ping: dbConn.PingContext,
		close: func() {
			if err := db.Close(dbConn); err != nil {
				slog.Error("db close", "error", err)
			}
		},
	}, nil
}

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"driver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"stationsFile", cfg.StationsFile,
		"imapAddr", cfg.IMAPAddr,
		"pollInterval", cfg.PollInterval,
		"backfillCount", cfg.BackfillCount,
		"outputDir", cfg.OutputDir,
		"ftpAddr", cfg.FTPAddr,
		"mqttBroker", cfg.MQTTBroker,
		"redisAddr", cfg.RedisAddr,
	)

	registry, err := config.LoadStations(cfg.StationsFile)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.repo.UpsertStations(ctx, registry); err != nil {
		return fmt.Errorf("register stations: %w", err)
	}
	logger.Info("stations registered", "count", len(registry))

	opts := service.Options{
		Stations:        registry,
		Repository:      st.repo,
		Generator:       publish.Generator{Dir: cfg.OutputDir, PlotSamples: cfg.PlotSamples},
		Logger:          logger.With("component", "ingest"),
		BackfillCount:   cfg.BackfillCount,
		DeleteProcessed: cfg.IMAPDeleteProcessed,
		Workers:         cfg.IngestWorkers,
		Interval:        cfg.PollInterval,
		MaxFailures:     cfg.MaxCycleFailures,
	}

	if cfg.IMAPAddr != "" {
		opts.Fetcher = mail.NewIMAPFetcher(mail.IMAPConfig{
			Addr:          cfg.IMAPAddr,
			Username:      cfg.IMAPUsername,
			Password:      cfg.IMAPPassword,
			AllMailFolder: cfg.IMAPAllMailFolder,
		}, logger.With("component", "imap"))
	} else {
		logger.Warn("IMAP_ADDR not set; no mail will be ingested")
	}

	if cfg.FTPAddr != "" {
		opts.Uploader = upload.NewFTPUploader(upload.FTPConfig{
			Addr:      cfg.FTPAddr,
			Username:  cfg.FTPUsername,
			Password:  cfg.FTPPassword,
			UploadDir: cfg.FTPUploadDir,
			PDFDir:    cfg.FTPPDFDir,
		}, logger.With("component", "ftp"))
	}

	if cfg.NotifyWebhookURL != "" {
		opts.Notifier = notify.NewWebhook(cfg.NotifyWebhookURL, cfg.MaxCycleFailures)
	}

	if cfg.RedisAddr != "" {
		statusCache, err := cache.NewRedisStatusCache(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.StatusTTL)
		if err != nil {
			// Status reads fall back to the store.
			logger.Warn("redis unavailable (continuing without status cache)", "error", err)
		} else {
			defer func() { _ = statusCache.Close() }()
			opts.Cache = statusCache
		}
	}

	var publisher *mqtt.Publisher
	if cfg.MQTTBroker != "" {
		publisher = mqtt.NewPublisher(cfg, logger.With("component", "mqtt"))
		// Short timeout so a broker outage does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing, client keeps retrying)", "error", err)
		}
		opts.Sinks = append(opts.Sinks, publisher)
	}

	svc, err := service.NewService(opts)
	if err != nil {
		return err
	}

	mux := httpapi.NewMux(st.ping)
	stations.RegisterFeature(mux, svc)
	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	ingestCtx, stopIngest := context.WithCancel(ctx)
	defer stopIngest()
	ingestCh := make(chan error, 1)
	go func() {
		ingestCh <- svc.Run(ingestCtx)
	}()

	var (
		runErr     error
		ingestDone bool
	)
	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopIngest()
		<-ingestCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-ingestCh:
		runErr, ingestDone = err, true
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopIngest()
	if !ingestDone {
		<-ingestCh
	}

	if publisher != nil {
		logger.Info("mqtt disconnecting")
		publisher.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return ctx.Err()
}
