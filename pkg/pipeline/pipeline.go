// Package pipeline 串联一次翻译配音请求的各个阶段
package pipeline

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/cache"
	"github.com/z-wentao/voicedub/pkg/metrics"
	"github.com/z-wentao/voicedub/pkg/models"
	"github.com/z-wentao/voicedub/pkg/source"
	"github.com/z-wentao/voicedub/pkg/speech"
	"github.com/z-wentao/voicedub/pkg/transcriber"
)

// dataURIPrefix 返回给浏览器的配音视频
const dataURIPrefix = "data:video/mp4;base64,"

// releaseTimeout 删除远端文件的超时
const releaseTimeout = 30 * time.Second

// Transcriber 远端转写翻译服务
type Transcriber interface {
	Upload(ctx context.Context, localPath, mimeType, displayName string) (*models.RemoteHandle, error)
	AwaitReady(ctx context.Context, handle *models.RemoteHandle) error
	Translate(ctx context.Context, handle *models.RemoteHandle, targetLanguage string) (string, error)
	Release(ctx context.Context, handle *models.RemoteHandle)
}

// Acquirer 获取源视频
type Acquirer interface {
	ValidateUpload(file *models.UploadedFile) error
	PersistUpload(ctx context.Context, file *models.UploadedFile) (*models.LocalMedia, error)
	Fetch(ctx context.Context, rawURL string) (*models.LocalMedia, error)
}

// Muxer 替换音轨
type Muxer interface {
	Remux(videoPath, audioPath string) (string, error)
}

// Publisher 发布翻译事件
type Publisher interface {
	Publish(ctx context.Context, event *models.TranslationEvent) error
}

// Deps 依赖
// Transcriber 为 nil 表示未配置 API Key，每个请求都返回 Configuration 错误
type Deps struct {
	Transcriber Transcriber
	Acquirer    Acquirer
	Synthesizer speech.Synthesizer
	Muxer       Muxer
	Cache       *cache.Cache
	Events      Publisher
	Metrics     *metrics.Metrics
}

// Pipeline 翻译配音流程
type Pipeline struct {
	transcriber Transcriber
	acquirer    Acquirer
	synthesizer speech.Synthesizer
	muxer       Muxer
	cache       *cache.Cache
	events      Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New 创建 Pipeline
func New(deps Deps) *Pipeline {
	return &Pipeline{
		transcriber: deps.Transcriber,
		acquirer:    deps.Acquirer,
		synthesizer: deps.Synthesizer,
		muxer:       deps.Muxer,
		cache:       deps.Cache,
		events:      deps.Events,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// Run 处理一次请求
// 校验 → 获取源视频 → 查缓存 → 上传 → 等待处理 → 翻译 → 合成语音 → 合并音视频 → 编码
// 任何出口都会删除临时文件并释放远端文件
func (p *Pipeline) Run(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	start := p.now()

	r := &run{p: p, req: req, clientCtx: ctx, stageCtx: context.WithoutCancel(ctx)}
	result, err := r.execute()

	p.finish(r, result, err, p.now().Sub(start))
	return result, err
}

// finish 记录指标、发布事件
func (p *Pipeline) finish(r *run, result *models.TranslationResult, err error, elapsed time.Duration) {
	event := &models.TranslationEvent{
		EventID:        uuid.New().String(),
		Fingerprint:    r.fingerprint,
		TargetLanguage: strings.TrimSpace(r.req.TargetLanguage),
		DurationMillis: elapsed.Milliseconds(),
		CreatedAt:      p.now(),
	}
	if r.media != nil {
		event.FileName = r.media.DisplayName
		event.Source = r.media.Kind
	}

	switch {
	case err != nil:
		event.Status = models.EventFailed
		event.ErrorType = ErrorType(err)
		event.Error = err.Error()
		log.Printf("❌ 翻译失败 (%s): %v", elapsed.Round(time.Millisecond), err)
	case result.Cached:
		event.Status = models.EventCached
	default:
		event.Status = models.EventCompleted
		log.Printf("✓ 翻译完成: %s → %s (%s)", result.FileName, result.TargetLanguage, elapsed.Round(time.Millisecond))
	}

	p.metrics.ObserveRequest(string(event.Status), event.ErrorType, elapsed)

	if p.events != nil {
		if err := p.events.Publish(context.Background(), event); err != nil {
			log.Printf("⚠️ 发布翻译事件失败: %v", err)
		}
	}
}

// ErrorType 对外的错误分类
func ErrorType(err error) string {
	if e, ok := apperror.As(err); ok {
		return e.Kind.Category()
	}
	return apperror.CategoryInternal
}

// run 单次请求的状态，cleanup 只负责它登记过的资源
type run struct {
	p           *Pipeline
	req         *models.TranslationRequest
	clientCtx   context.Context
	stageCtx    context.Context
	fingerprint string

	media      *models.LocalMedia
	handle     *models.RemoteHandle
	tempFiles  []string
	translated string
}

func (r *run) execute() (*models.TranslationResult, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.p.transcriber == nil {
		return nil, apperror.New(apperror.KindConfiguration, "Gemini API key not configured")
	}

	r.fingerprint = r.req.Fingerprint()

	defer r.cleanup()

	if err := r.stage("acquire", r.acquire); err != nil {
		return nil, err
	}

	if entry, ok := r.p.cache.Get(r.stageCtx, r.fingerprint); ok {
		r.p.metrics.CacheLookup(true)
		log.Printf("✓ 命中缓存: %s", r.fingerprint)
		return &models.TranslationResult{
			Translation:    entry.Translation,
			VideoURL:       entry.VideoURL,
			FileName:       r.media.DisplayName,
			TargetLanguage: r.req.TargetLanguage,
			Cached:         true,
		}, nil
	}
	r.p.metrics.CacheLookup(false)

	stages := []struct {
		name string
		fn   func() error
	}{
		{"upload", r.upload},
		{"await", r.await},
		{"translate", r.translate},
	}
	for _, s := range stages {
		if err := r.stage(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	var audioPath, dubbedPath, dataURI string
	if err := r.stage("synthesize", func() (err error) {
		audioPath, err = r.synthesize()
		return err
	}); err != nil {
		return nil, err
	}
	if err := r.stage("mux", func() (err error) {
		dubbedPath, err = r.mux(audioPath)
		return err
	}); err != nil {
		return nil, err
	}
	if err := r.stage("encode", func() (err error) {
		dataURI, err = encodeDataURI(dubbedPath)
		return err
	}); err != nil {
		return nil, err
	}

	r.p.cache.Put(r.stageCtx, r.fingerprint, &models.CacheEntry{
		Translation: r.translated,
		VideoURL:    dataURI,
	})

	return &models.TranslationResult{
		Translation:    r.translated,
		VideoURL:       dataURI,
		FileName:       r.media.DisplayName,
		TargetLanguage: r.req.TargetLanguage,
	}, nil
}

// stage 开始前检查客户端是否已断开；已开始的阶段不受影响
func (r *run) stage(name string, fn func() error) error {
	if err := r.clientCtx.Err(); err != nil {
		return apperror.Wrap(apperror.KindCanceled, err, "Request canceled before "+name)
	}
	start := r.p.now()
	err := fn()
	r.p.metrics.ObserveStage(name, r.p.now().Sub(start))
	return err
}

func (r *run) validate() error {
	if strings.TrimSpace(r.req.TargetLanguage) == "" {
		return apperror.New(apperror.KindInvalidInput, "Target language is required")
	}

	r.req.VideoURL = strings.TrimSpace(r.req.VideoURL)
	hasFile := r.req.File != nil
	hasURL := r.req.VideoURL != ""
	switch {
	case !hasFile && !hasURL:
		return apperror.New(apperror.KindInvalidInput, "Either a file or video URL must be provided")
	case hasFile && hasURL:
		return apperror.New(apperror.KindInvalidInput, "Provide either a file or a video URL, not both")
	case hasFile:
		return r.p.acquirer.ValidateUpload(r.req.File)
	}
	return nil
}

func (r *run) acquire() error {
	var (
		media *models.LocalMedia
		err   error
	)
	if r.req.File != nil {
		log.Printf("📥 处理上传文件: %s (%s)", r.req.File.Name, humanize.Bytes(uint64(r.req.File.Size)))
		media, err = r.p.acquirer.PersistUpload(r.stageCtx, r.req.File)
	} else {
		log.Printf("📥 处理视频链接: %s", r.req.VideoURL)
		media, err = r.p.acquirer.Fetch(r.stageCtx, r.req.VideoURL)
	}
	if err != nil {
		return err
	}

	r.media = media
	r.track(media.Path)
	return nil
}

func (r *run) upload() error {
	handle, err := r.p.transcriber.Upload(r.stageCtx, r.media.Path, r.media.MIMEType, r.media.DisplayName)
	if err != nil {
		return err
	}
	r.handle = handle
	return nil
}

func (r *run) await() error {
	return r.p.transcriber.AwaitReady(r.stageCtx, r.handle)
}

func (r *run) translate() error {
	text, err := r.p.transcriber.Translate(r.stageCtx, r.handle, r.req.TargetLanguage)
	if err != nil {
		return err
	}
	r.translated = text
	return nil
}

// synthesize 去掉时间戳后再朗读
func (r *run) synthesize() (string, error) {
	script := transcriber.SpokenScript(r.translated)
	if script == "" {
		return "", apperror.New(apperror.KindSynthesisError, "Failed to generate speech: translation has no spoken text")
	}

	path, err := r.p.synthesizer.Synthesize(r.stageCtx, script, r.req.TargetLanguage)
	if err != nil {
		if _, ok := apperror.As(err); !ok {
			err = apperror.Wrap(apperror.KindSynthesisError, err, "Failed to generate speech")
		}
		return "", err
	}
	r.track(path)
	return path, nil
}

func (r *run) mux(audioPath string) (string, error) {
	path, err := r.p.muxer.Remux(r.media.Path, audioPath)
	if err != nil {
		if _, ok := apperror.As(err); !ok {
			err = apperror.Wrap(apperror.KindMuxError, err, "Failed to merge audio and video")
		}
		return "", err
	}
	r.track(path)
	return path, nil
}

func encodeDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperror.Wrap(apperror.KindMuxError, err, "Failed to read dubbed video")
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}

func (r *run) track(path string) {
	if path != "" {
		r.tempFiles = append(r.tempFiles, path)
	}
}

// cleanup 删除临时文件，释放远端文件（只释放一次）
func (r *run) cleanup() {
	for _, path := range r.tempFiles {
		source.Remove(path)
	}
	r.tempFiles = nil

	if r.handle != nil {
		ctx, cancel := context.WithTimeout(r.stageCtx, releaseTimeout)
		r.p.transcriber.Release(ctx, r.handle)
		cancel()
		r.handle = nil
	}
}
