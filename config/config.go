package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHTTPAddr      = ":8080"
	DefaultRegion        = "us-east-1"
	DefaultUploadsPrefix = "uploads/"
	DefaultUploadsTable  = "uploads"
	DefaultRedisHost     = "localhost:6379"
	DefaultVideoMimeType = "video/mp4"
	DefaultRenderScale   = 1.5
	DefaultSpoolDir      = "data/spool"
	DefaultHistoryTTL    = 5 * time.Minute

	envPrefix = "studio"
)

type AWSConfig struct {
	Region         string `mapstructure:"region"`
	IdentityPoolID string `mapstructure:"identity_pool_id"`
	// Endpoint overrides every AWS client endpoint (localstack).
	Endpoint string `mapstructure:"endpoint"`
}

func (c AWSConfig) Validate() error {
	if c.Region == "" {
		return errors.New("aws region is required")
	}
	return nil
}

type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type SQSConfig struct {
	QueueURL string `mapstructure:"queue_url"`
}

type DynamoDBConfig struct {
	UploadsTableName string `mapstructure:"uploads_table_name"`
}

type RedisConfig struct {
	HOST     string        `mapstructure:"host"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SlidesConfig struct {
	VideoMimeType string  `mapstructure:"video_mime_type"`
	RenderScale   float64 `mapstructure:"render_scale"`
	SpoolDir      string  `mapstructure:"spool_dir"`
}

type ServiceConfig struct {
	HTTPAddr       string   `mapstructure:"http_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
}

type Config struct {
	Env         string `mapstructure:"env"`
	Tracing     bool   `mapstructure:"tracing"`
	TracingAddr string `mapstructure:"tracing_addr"`

	AWSConfig      *AWSConfig      `mapstructure:"aws"`
	S3Config       *S3Config       `mapstructure:"s3"`
	SQSConfig      *SQSConfig      `mapstructure:"sqs"`
	DynamoDBConfig *DynamoDBConfig `mapstructure:"dynamodb"`
	RedisConfig    *RedisConfig    `mapstructure:"redis"`
	SlidesConfig   *SlidesConfig   `mapstructure:"slides"`
	ServiceConfig  *ServiceConfig  `mapstructure:"service"`
}

// Validate checks what the uploader flow needs before any AWS client is built.
func (c Config) Validate() error {
	if err := c.AWSConfig.Validate(); err != nil {
		return err
	}
	if c.S3Config.Bucket == "" {
		return errors.New("s3 bucket is required")
	}
	if c.SQSConfig.QueueURL == "" {
		return errors.New("sqs queue url is required")
	}
	if c.SlidesConfig.RenderScale <= 0 {
		return fmt.Errorf("invalid render scale %v", c.SlidesConfig.RenderScale)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("tracing", false)
	v.SetDefault("tracing_addr", "localhost:4317")

	v.SetDefault("aws.region", DefaultRegion)
	v.SetDefault("aws.identity_pool_id", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", DefaultUploadsPrefix)

	v.SetDefault("sqs.queue_url", "")

	v.SetDefault("dynamodb.uploads_table_name", DefaultUploadsTable)

	v.SetDefault("redis.host", DefaultRedisHost)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", DefaultHistoryTTL)

	v.SetDefault("slides.video_mime_type", DefaultVideoMimeType)
	v.SetDefault("slides.render_scale", DefaultRenderScale)
	v.SetDefault("slides.spool_dir", DefaultSpoolDir)

	v.SetDefault("service.http_addr", DefaultHTTPAddr)
	v.SetDefault("service.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("service.max_upload_mb", 512)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Load reads defaults, an optional config file and STUDIO_* environment
// variables, in increasing priority.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return unmarshal(v)
}

// LoadConfig is Load with the path taken from STUDIO_CONFIG.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return Load(v.GetString("config"))
}
