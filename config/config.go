package config

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App       App
	Server    Server
	Media     Media
	Auth      Auth
	Retention Retention
	Storage   Storage

	DB    *sql.DB
	Queue *RabbitMQ
	Minio *minio.Client
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

// Media holds the processing-pipeline knobs: where staged uploads live,
// what ingestion accepts, which external tools run and for how long.
type Media struct {
	StagingDir           string        `yaml:"staging_dir"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	AllowedExtensions    []string      `yaml:"allowed_extensions"`
	EnableTranscode      bool          `yaml:"enable_transcode"`
	FFmpegBin            string        `yaml:"ffmpeg_bin"`
	FFprobeBin           string        `yaml:"ffprobe_bin"`
	ProbeTimeout         time.Duration `yaml:"probe_timeout"`
	TranscodeTimeout     time.Duration `yaml:"transcode_timeout"`
	ThumbnailTimeout     time.Duration `yaml:"thumbnail_timeout"`
	ProcessRatePerMinute int           `yaml:"process_rate_per_minute"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
}

type Auth struct {
	Secret            string        `yaml:"secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	AdminUsername     string        `yaml:"admin_username"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	AdminUserID       int64         `yaml:"admin_user_id"`
}

type Retention struct {
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Storage selects the permanent-storage backend: "local" keeps processed
// artifacts on disk, "minio" pushes them to object storage.
type Storage struct {
	Driver   string `yaml:"driver"`
	LocalDir string `yaml:"local_dir"`
	Bucket   string `yaml:"bucket"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("rabbitmq.kind", "direct")
	viper.SetDefault("media.staging_dir", "data/staging")
	viper.SetDefault("media.max_upload_bytes", int64(500*1024*1024))
	viper.SetDefault("media.allowed_extensions", []string{"mp4", "avi", "mov", "mkv", "webm"})
	viper.SetDefault("media.enable_transcode", false)
	viper.SetDefault("media.ffmpeg_bin", "ffmpeg")
	viper.SetDefault("media.ffprobe_bin", "ffprobe")
	viper.SetDefault("media.probe_timeout", 30*time.Second)
	viper.SetDefault("media.transcode_timeout", 30*time.Minute)
	viper.SetDefault("media.thumbnail_timeout", 60*time.Second)
	viper.SetDefault("media.process_rate_per_minute", 5)
	viper.SetDefault("media.retry_max_attempts", 3)
	viper.SetDefault("media.retry_delay", 60*time.Second)
	viper.SetDefault("auth.session_ttl", 30*time.Minute)
	viper.SetDefault("auth.admin_user_id", int64(1))
	viper.SetDefault("retention.max_age", 24*time.Hour)
	viper.SetDefault("retention.sweep_interval", time.Hour)
	viper.SetDefault("storage.driver", "local")
	viper.SetDefault("storage.local_dir", "data/media")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq.host"),
		Port: viper.GetInt("rabbitmq.port"),
		User: viper.GetString("rabbitmq.user"),
		Pass: viper.GetString("rabbitmq.pass"),
		Kind: viper.GetString("rabbitmq.kind"),
	}

	cfg := &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Media: Media{
			StagingDir:           viper.GetString("media.staging_dir"),
			MaxUploadBytes:       viper.GetInt64("media.max_upload_bytes"),
			AllowedExtensions:    viper.GetStringSlice("media.allowed_extensions"),
			EnableTranscode:      viper.GetBool("media.enable_transcode"),
			FFmpegBin:            viper.GetString("media.ffmpeg_bin"),
			FFprobeBin:           viper.GetString("media.ffprobe_bin"),
			ProbeTimeout:         viper.GetDuration("media.probe_timeout"),
			TranscodeTimeout:     viper.GetDuration("media.transcode_timeout"),
			ThumbnailTimeout:     viper.GetDuration("media.thumbnail_timeout"),
			ProcessRatePerMinute: viper.GetInt("media.process_rate_per_minute"),
			RetryMaxAttempts:     viper.GetInt("media.retry_max_attempts"),
			RetryDelay:           viper.GetDuration("media.retry_delay"),
		},
		Auth: Auth{
			Secret:            viper.GetString("auth.secret"),
			SessionTTL:        viper.GetDuration("auth.session_ttl"),
			AdminUsername:     viper.GetString("auth.admin_username"),
			AdminPasswordHash: viper.GetString("auth.admin_password_hash"),
			AdminUserID:       viper.GetInt64("auth.admin_user_id"),
		},
		Retention: Retention{
			MaxAge:        viper.GetDuration("retention.max_age"),
			SweepInterval: viper.GetDuration("retention.sweep_interval"),
		},
		Storage: Storage{
			Driver:   viper.GetString("storage.driver"),
			LocalDir: viper.GetString("storage.local_dir"),
			Bucket:   viper.GetString("storage.bucket"),
		},
		DB:    db,
		Queue: rabbitmq,
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret must be set")
	}

	if cfg.Storage.Driver == "minio" {
		minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Minio = minioClient
	}

	if err := os.MkdirAll(cfg.Media.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	return cfg, nil
}
