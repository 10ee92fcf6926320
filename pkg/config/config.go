package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	Gemini      GeminiConfig      `yaml:"gemini"`
	Speech      SpeechConfig      `yaml:"speech"`
	Media       MediaConfig       `yaml:"media"`
	Cache       CacheConfig       `yaml:"cache"`
	Queue       QueueConfig       `yaml:"queue"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Server      ServerConfig      `yaml:"server"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey          string        `yaml:"api_key"`
	DefaultModel    string        `yaml:"default_model"`
	FallbackModels  []string      `yaml:"fallback_models"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
}

// ProcessingTimeout 轮询总时长上限
func (g GeminiConfig) ProcessingTimeout() time.Duration {
	return g.PollInterval * time.Duration(g.MaxPollAttempts)
}

// SpeechConfig TTS 配置
type SpeechConfig struct {
	Provider    string        `yaml:"provider"` // google | openai
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
}

// OpenAIConfig OpenAI TTS 配置
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	Voice  string `yaml:"voice"`
}

// MediaConfig 媒体相关配置
type MediaConfig struct {
	FFmpegPath          string   `yaml:"ffmpeg_path"`
	FFprobePath         string   `yaml:"ffprobe_path"`
	TempDir             string   `yaml:"temp_dir"`
	MaxFileSize         int64    `yaml:"max_file_size"`
	SupportedVideoTypes []string `yaml:"supported_video_types"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Backend  string         `yaml:"backend"` // memory | redis | postgres | minio | tiered
	TTL      time.Duration  `yaml:"ttl"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	MinIO    MinIOConfig    `yaml:"minio"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// MinIOConfig 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// QueueConfig 事件队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"` // memory | rabbitmq | none
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

// MaintenanceConfig 定时清理配置
type MaintenanceConfig struct {
	CacheSweepSchedule string        `yaml:"cache_sweep_schedule"`
	TempSweepSchedule  string        `yaml:"temp_sweep_schedule"`
	TempMaxAge         time.Duration `yaml:"temp_max_age"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Validate()
	return cfg
}

// LoadConfig 加载配置：.env -> YAML 文件 -> 环境变量覆盖
// 配置文件不存在时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  加载 .env 失败: %v", err)
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("⚠️  配置文件 %s 不存在，使用默认配置", configPath)
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// applyEnv 环境变量优先级高于配置文件
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("GEMINI_API_KEY", &c.Gemini.APIKey)
	setString("GEMINI_MODEL", &c.Gemini.DefaultModel)
	setString("OPENAI_API_KEY", &c.Speech.OpenAI.APIKey)
	setString("TTS_PROVIDER", &c.Speech.Provider)
	setString("FFMPEG_PATH", &c.Media.FFmpegPath)
	setString("FFPROBE_PATH", &c.Media.FFprobePath)
	setString("TEMP_DIR", &c.Media.TempDir)
	setString("CACHE_BACKEND", &c.Cache.Backend)
	setString("REDIS_ADDR", &c.Cache.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Cache.Redis.Password)
	setString("DATABASE_URL", &c.Cache.Postgres.DSN)
	setString("MINIO_ENDPOINT", &c.Cache.MinIO.Endpoint)
	setString("MINIO_ACCESS_KEY", &c.Cache.MinIO.AccessKey)
	setString("MINIO_SECRET_KEY", &c.Cache.MinIO.SecretKey)
	setString("QUEUE_TYPE", &c.Queue.Type)
	setString("RABBITMQ_URL", &c.Queue.RabbitMQ.URL)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT 不是有效数字: %w", err)
		}
		c.Server.Port = port
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL 格式错误: %w", err)
		}
		c.Cache.TTL = ttl
	}

	return nil
}

// Validate 验证配置并填充默认值
// 缺少 API Key 不报错：服务照常启动，每个请求返回配置错误
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "your-gemini-api-key-here" {
		c.Gemini.APIKey = ""
	}
	if c.Gemini.DefaultModel == "" {
		c.Gemini.DefaultModel = "gemini-2.5-flash"
	}
	if c.Gemini.FallbackModels == nil {
		c.Gemini.FallbackModels = []string{"gemini-2.0-flash"}
	}
	if c.Gemini.PollInterval <= 0 {
		c.Gemini.PollInterval = 2 * time.Second
	}
	if c.Gemini.MaxPollAttempts <= 0 {
		c.Gemini.MaxPollAttempts = 60
	}

	if c.Speech.Provider == "" {
		c.Speech.Provider = "google"
	}
	if c.Speech.Provider != "google" && c.Speech.Provider != "openai" {
		return fmt.Errorf("不支持的 TTS 提供方: %s", c.Speech.Provider)
	}
	if c.Speech.Concurrency <= 0 {
		c.Speech.Concurrency = 3
	}
	if c.Speech.Timeout <= 0 {
		c.Speech.Timeout = 10 * time.Second
	}
	if c.Speech.OpenAI.Model == "" {
		c.Speech.OpenAI.Model = "tts-1"
	}
	if c.Speech.OpenAI.Voice == "" {
		c.Speech.OpenAI.Voice = "alloy"
	}

	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
	if c.Media.FFprobePath == "" {
		c.Media.FFprobePath = "ffprobe"
	}
	if c.Media.TempDir == "" {
		c.Media.TempDir = os.TempDir()
	}
	if c.Media.MaxFileSize <= 0 {
		c.Media.MaxFileSize = 100 * 1024 * 1024
	}
	if len(c.Media.SupportedVideoTypes) == 0 {
		c.Media.SupportedVideoTypes = []string{
			"video/mp4",
			"video/webm",
			"video/avi",
			"video/mov",
			"video/quicktime",
		}
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.MinIO.Bucket == "" {
		c.Cache.MinIO.Bucket = "voicedub-cache"
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "voicedub.translations"
	}

	if c.Maintenance.CacheSweepSchedule == "" {
		c.Maintenance.CacheSweepSchedule = "@every 1h"
	}
	if c.Maintenance.TempSweepSchedule == "" {
		c.Maintenance.TempSweepSchedule = "@every 30m"
	}
	if c.Maintenance.TempMaxAge <= 0 {
		c.Maintenance.TempMaxAge = 6 * time.Hour
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	return nil
}
