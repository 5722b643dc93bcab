package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Yulian302/lfusys-services-studio/config"
	"github.com/Yulian302/lfusys-services-studio/identity"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	ghandlers "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "studio"

type App struct {
	Server *http.Server
	Router *gin.Engine

	DynamoDB *dynamodb.Client
	S3       *s3.Client
	Redis    *redis.Client
	Sqs      *sqs.Client

	Config    config.Config
	AwsConfig aws.Config
	// InitErr is the failed identity exchange, reported by every upload.
	InitErr error

	Services       *Services
	TracerProvider *trace.TracerProvider
	Logger         logging.Logger

	cancel context.CancelFunc
}

func SetupApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logging.NewSlogLogger(logging.CreateAppLogger(cfg.Env))

	awsCfg, err := initAWS(*cfg.AWSConfig)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: appLogger,
	}

	if pool := cfg.AWSConfig.IdentityPoolID; pool != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := identity.Exchange(ctx, identity.NewCognitoClient(awsCfg), pool)
		cancel()
		if err != nil {
			appLogger.Error("aws initialization failed", "identity_pool", pool, "error", err)
			app.InitErr = err
		} else {
			awsCfg.Credentials = aws.NewCredentialsCache(creds)
			appLogger.Info("identity credentials acquired", "identity_pool", pool)
		}
	}

	app.AwsConfig = awsCfg
	app.DynamoDB = initDynamo(awsCfg)
	app.S3 = initS3(awsCfg)
	app.Sqs = initSqs(awsCfg)
	app.Redis = initRedis(*cfg.RedisConfig)
	if app.Redis == nil {
		appLogger.Warn("redis is not configured, upload history is not cached")
	}

	if app.Config.Tracing {
		tp, err := initTracer(context.Background(), serviceName, cfg.TracingAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		appLogger.Info("tracing in progress", "collector", cfg.TracingAddr)

		app.TracerProvider = tp
	}

	app.Services, err = BuildServices(app)
	if err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.Services.Monitor.Run(ctx)

	a.Router = gin.New()
	a.Router.Use(gin.Recovery())
	if a.Config.Tracing {
		a.Router.Use(otelgin.Middleware(serviceName))
	}
	a.Services.Handler.Register(a.Router)

	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(a.Config.ServiceConfig.AllowedOrigins),
		ghandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Range", "X-Timezone", "X-User-Id"}),
		ghandlers.ExposedHeaders([]string{"Content-Range", "Accept-Ranges"}),
	)

	a.Server = &http.Server{
		Addr:              a.Config.ServiceConfig.HTTPAddr,
		Handler:           ghandlers.CombinedLoggingHandler(os.Stdout, cors(a.Router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Logger.Info("http server started", "addr", a.Server.Addr)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initAWS(cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return awsCfg, nil
}

func initDynamo(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

func initS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// localstack serves buckets by path
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.HOST == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.HOST,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func initSqs(cfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(cfg)
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("starting graceful shutdown")

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Logger.Error("http server shutdown error", "error", err)
			a.Server.Close() // force
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.Services != nil {
		if err := a.Services.Shutdown(ctx); err != nil {
			a.Logger.Error("services shutdown error", "error", err)
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}

	if a.TracerProvider != nil {
		if err := a.TracerProvider.Shutdown(ctx); err != nil {
			a.Logger.Error("tracer shutdown error", "error", err)
		}
	}

	a.Logger.Info("graceful shutdown complete")
	return nil
}
