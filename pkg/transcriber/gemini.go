package transcriber

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/lang"
	"github.com/z-wentao/voicedub/pkg/models"
	"google.golang.org/api/option"
)

// FileService Gemini File API
type FileService interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// Generator 调用指定模型生成内容
type Generator interface {
	GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// genaiBackend 把 *genai.Client 适配为 FileService + Generator
type genaiBackend struct {
	*genai.Client
}

func (b genaiBackend) GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return b.GenerativeModel(model).GenerateContent(ctx, parts...)
}

// Options 轮询和模型参数
type Options struct {
	Model           string
	PollInterval    time.Duration
	MaxPollAttempts int
}

// GeminiClient 上传视频、等待处理完成、请求带时间戳的翻译
type GeminiClient struct {
	files  FileService
	gen    Generator
	closer io.Closer
	opts   Options
	wait   func(ctx context.Context, d time.Duration) error
}

// NewGeminiClient 使用 API Key 创建客户端
func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	backend := genaiBackend{Client: client}
	c := NewGeminiClientWith(backend, backend, opts)
	c.closer = client
	return c, nil
}

// NewGeminiClientWith 注入 File API 和生成接口（测试用）
func NewGeminiClientWith(files FileService, gen Generator, opts Options) *GeminiClient {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = 60
	}
	return &GeminiClient{
		files: files,
		gen:   gen,
		opts:  opts,
		wait:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Model 当前使用的模型
func (gc *GeminiClient) Model() string {
	return gc.opts.Model
}

// Upload 上传本地文件
func (gc *GeminiClient) Upload(ctx context.Context, localPath, mimeType, displayName string) (*models.RemoteHandle, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUploadError, err, "Failed to open video for upload")
	}
	defer file.Close()

	uploaded, err := gc.files.UploadFile(ctx, "", file, &genai.UploadFileOptions{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUploadError, err, "Failed to upload video to Gemini")
	}

	handle := &models.RemoteHandle{
		Name:     uploaded.Name,
		URI:      uploaded.URI,
		MIMEType: uploaded.MIMEType,
		State:    handleState(uploaded.State),
	}
	if handle.MIMEType == "" {
		handle.MIMEType = mimeType
	}

	log.Printf("✓ 文件已上传到 Gemini: %s (%s)", handle.Name, displayName)
	return handle, nil
}

func handleState(s genai.FileState) models.HandleState {
	switch s {
	case genai.FileStateActive:
		return models.StateReady
	case genai.FileStateFailed:
		return models.StateFailed
	default:
		return models.StatePending
	}
}

// AwaitReady 轮询直到文件可用
// 间隔 PollInterval，最多 MaxPollAttempts 次；超出次数返回 Timeout
func (gc *GeminiClient) AwaitReady(ctx context.Context, handle *models.RemoteHandle) error {
	for attempt := 1; attempt <= gc.opts.MaxPollAttempts; attempt++ {
		file, err := gc.files.GetFile(ctx, handle.Name)
		if err != nil {
			return apperror.Wrap(apperror.KindRemoteProcessingFailed, err, "Failed to check video processing state")
		}

		handle.State = handleState(file.State)
		log.Printf("⏳ 处理状态 %d/%d: %s", attempt, gc.opts.MaxPollAttempts, file.State)

		switch handle.State {
		case models.StateReady:
			log.Println("✓ Gemini 文件处理完成")
			return nil
		case models.StateFailed:
			return apperror.New(apperror.KindRemoteProcessingFailed, "Video processing failed on Gemini servers")
		}

		if attempt == gc.opts.MaxPollAttempts {
			break
		}
		if err := gc.wait(ctx, gc.opts.PollInterval); err != nil {
			return apperror.Wrap(apperror.KindCanceled, err, "Video processing wait interrupted")
		}
	}

	return apperror.New(apperror.KindTimeout, "Video processing timeout - file took too long to process")
}

// Translate 请求带时间戳的翻译，只调用一次
func (gc *GeminiClient) Translate(ctx context.Context, handle *models.RemoteHandle, targetLanguage string) (string, error) {
	prompt := BuildPrompt(targetLanguage)

	log.Printf("🤖 使用模型 %s 生成翻译", gc.opts.Model)
	resp, err := gc.gen.GenerateContent(ctx, gc.opts.Model,
		genai.FileData{MIMEType: handle.MIMEType, URI: handle.URI},
		genai.Text(prompt),
	)
	if err != nil {
		return "", apperror.Wrap(apperror.KindGenerationError, err, "Failed to generate translation")
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", apperror.New(apperror.KindGenerationError, "Failed to generate translation: Empty response from model")
	}
	return text, nil
}

// responseText 拼接第一个候选的所有文本片段
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String()
}

// Release 删除远端文件，失败只记录日志
func (gc *GeminiClient) Release(ctx context.Context, handle *models.RemoteHandle) {
	if handle == nil || handle.Name == "" {
		return
	}
	if err := gc.files.DeleteFile(ctx, handle.Name); err != nil {
		log.Printf("⚠️ 删除 Gemini 文件失败 %s: %v", handle.Name, err)
		return
	}
	log.Printf("🧹 已删除 Gemini 文件: %s", handle.Name)
}

// Close 关闭底层连接
func (gc *GeminiClient) Close() error {
	if gc.closer != nil {
		return gc.closer.Close()
	}
	return nil
}

// BuildPrompt 翻译提示词
func BuildPrompt(targetLanguage string) string {
	name := lang.DisplayName(targetLanguage)
	return fmt.Sprintf(`Translate the spoken content of this video to %s.

Requirements:
- Provide timestamps for each segment of dialogue
- Format: [MM:SS] Translated text
- Include ALL spoken dialogue and narration
- Maintain the original meaning and context
- Use natural, fluent language in %s

Please be thorough and accurate in your translation.`, name, name)
}
