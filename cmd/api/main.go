package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/z-wentao/voicedub/pkg/cache"
	"github.com/z-wentao/voicedub/pkg/config"
	"github.com/z-wentao/voicedub/pkg/media"
	"github.com/z-wentao/voicedub/pkg/metrics"
	"github.com/z-wentao/voicedub/pkg/pipeline"
	"github.com/z-wentao/voicedub/pkg/queue"
	"github.com/z-wentao/voicedub/pkg/source"
	"github.com/z-wentao/voicedub/pkg/speech"
	"github.com/z-wentao/voicedub/pkg/storage"
	"github.com/z-wentao/voicedub/pkg/transcriber"
	"github.com/z-wentao/voicedub/pkg/worker"
)

func main() {
	// 1. 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	// 2. 临时目录
	if err := os.MkdirAll(cfg.Media.TempDir, 0755); err != nil {
		log.Fatalf("❌ 创建临时目录失败: %v", err)
	}

	ctx := context.Background()
	m := metrics.New()

	// 3. 缓存
	store := newStore(ctx, cfg.Cache)
	resultCache := cache.New(store, cfg.Cache.TTL)

	// 4. 事件队列
	events := newQueue(cfg.Queue)

	// 5. Gemini（缺少 API Key 时照常启动，请求返回配置错误）
	var gemini *transcriber.GeminiClient
	if cfg.Gemini.APIKey == "" {
		log.Println("⚠️  未配置 GEMINI_API_KEY，翻译请求将返回配置错误")
	} else {
		gemini, err = transcriber.NewGeminiClient(ctx, cfg.Gemini.APIKey, transcriber.Options{
			Model:           cfg.Gemini.DefaultModel,
			PollInterval:    cfg.Gemini.PollInterval,
			MaxPollAttempts: cfg.Gemini.MaxPollAttempts,
		})
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("✓ Gemini 客户端初始化成功 (模型: %s)", gemini.Model())
	}

	// 6. TTS
	synthesizer, err := speech.New(cfg.Speech, cfg.Media.TempDir)
	if err != nil {
		log.Fatalf("❌ 初始化 TTS 失败: %v", err)
	}
	log.Printf("✓ TTS 提供方: %s", cfg.Speech.Provider)

	deps := pipeline.Deps{
		Acquirer: source.NewAcquirer(source.Options{
			TempDir:        cfg.Media.TempDir,
			MaxFileSize:    cfg.Media.MaxFileSize,
			SupportedTypes: cfg.Media.SupportedVideoTypes,
		}),
		Synthesizer: synthesizer,
		Muxer:       media.NewMuxer(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.TempDir),
		Cache:       resultCache,
		Events:      events,
		Metrics:     m,
	}
	if gemini != nil {
		deps.Transcriber = gemini
	}

	app := &App{
		config:     cfg,
		translator: pipeline.New(deps),
		metrics:    m,
	}

	// 7. 后台任务
	eventWorker := worker.NewEventWorker(events, nil)
	eventWorker.Start()

	maintenance, err := worker.NewMaintenance(resultCache, m, worker.MaintenanceOptions{
		CacheSweepSchedule: cfg.Maintenance.CacheSweepSchedule,
		TempSweepSchedule:  cfg.Maintenance.TempSweepSchedule,
		TempDir:            cfg.Media.TempDir,
		TempMaxAge:         cfg.Maintenance.TempMaxAge,
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	maintenance.Start()

	// 8. HTTP 服务器
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.setupRouter(),
	}

	log.Printf("🚀 VoiceDub 服务器启动在 http://localhost:%d", cfg.Server.Port)
	log.Printf("📝 配置信息:")
	log.Printf("   - 模型: %s", cfg.Gemini.DefaultModel)
	log.Printf("   - 缓存: %s (有效期 %s)", cfg.Cache.Backend, resultCache.Window())
	log.Printf("   - 队列类型: %s", cfg.Queue.Type)
	log.Printf("   - 临时目录: %s", cfg.Media.TempDir)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ 服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	// 正在处理的请求最多等待到一次完整的轮询时长
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gemini.ProcessingTimeout()+30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ 服务器关闭超时: %v", err)
	}

	maintenance.Stop()
	eventWorker.Stop()
	events.Close()
	if err := resultCache.Close(); err != nil {
		log.Printf("⚠️ 关闭缓存失败: %v", err)
	}
	if gemini != nil {
		gemini.Close()
	}
	log.Println("✓ 服务器已关闭")
}

// newStore 根据配置选择缓存后端，连接失败时退回内存存储
func newStore(ctx context.Context, cfg config.CacheConfig) storage.Store {
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Printf("⚠️  缓存后端 %s 不可用: %v，使用内存缓存", cfg.Backend, err)
		return storage.NewMemoryStore()
	}
	log.Printf("✓ 使用 %s 缓存", cfg.Backend)
	return store
}

func openStore(ctx context.Context, cfg config.CacheConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		return storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL)
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
	case "minio":
		return storage.NewMinIOStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
	case "tiered":
		hot, err := storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		cold, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			hot.Close()
			return nil, err
		}
		return storage.NewHybridStore(hot, cold), nil
	default:
		return nil, fmt.Errorf("不支持的缓存后端: %s", cfg.Backend)
	}
}

// newQueue 根据配置选择事件队列
func newQueue(cfg config.QueueConfig) queue.Queue {
	switch cfg.Type {
	case "none":
		log.Println("✓ 不记录翻译事件")
		return queue.Discard{}
	case "rabbitmq":
		q, err := queue.NewRabbitMQQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err == nil {
			return q
		}
		log.Printf("⚠️  RabbitMQ 不可用: %v，使用内存队列", err)
	case "", "memory":
		log.Println("✓ 使用内存队列")
	default:
		log.Printf("⚠️  不支持的队列类型 %s，使用内存队列", cfg.Type)
	}
	return queue.NewMemoryQueue(cfg.BufferSize)
}
