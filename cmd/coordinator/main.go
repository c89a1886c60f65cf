package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/coordinator/api"
	"github.com/absmach/fedavg/coordinator/middleware"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "3000"
	envPrefixHTTP = "FEDAVG_HTTP_"
	envPrefixMQTT = "FEDAVG_MQTT_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel   string  `env:"FEDAVG_LOG_LEVEL"   envDefault:"info"`
	InstanceID string  `env:"FEDAVG_INSTANCE_ID"`
	InputDim   int     `env:"FEDAVG_INPUT_DIM"   envDefault:"2"`
	OutputDim  int     `env:"FEDAVG_OUTPUT_DIM"  envDefault:"1"`
	OTELURL    url.URL `env:"FEDAVG_OTEL_URL"`
	TraceRatio float64 `env:"FEDAVG_TRACE_RATIO" envDefault:"0"`
	Storage    storage.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repo, closer, err := storage.NewParticipantRepository(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize participant storage", slog.String("error", err.Error()))

		return
	}
	if closer != nil {
		defer closer.Close()
	}

	var opts []coordinator.Option
	mqttCfg := mqtt.Config{}
	if err := env.ParseWithOptions(&mqttCfg, env.Options{Prefix: envPrefixMQTT}); err != nil {
		logger.Error("failed to load MQTT configuration", slog.String("error", err.Error()))

		return
	}
	if mqttCfg.Address != "" {
		pubsub, err := mqtt.NewPubSub(mqttCfg, svcName+"-"+cfg.InstanceID, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}()
		opts = append(opts, coordinator.WithNotifier(coordinator.NewMQTTNotifier(pubsub, mqttCfg.Topic(mqtt.RoundsTopic))))
	}

	svc, err := coordinator.NewService(ctx, cfg.InputDim, cfg.OutputDim, repo, logger, opts...)
	if err != nil {
		logger.Error("failed to create coordinator", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	logger.Info("coordinator started",
		slog.Int("input_dim", cfg.InputDim),
		slog.Int("output_dim", cfg.OutputDim),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("notifications", mqttCfg.Address != ""))

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
