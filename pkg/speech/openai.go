package speech

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sashabaranov/go-openai"
	"github.com/z-wentao/voicedub/pkg/apperror"
)

// OpenAI speech 接口单次输入上限
const openAIChunkLimit = 4096

// OpenAIOptions OpenAI TTS 参数
type OpenAIOptions struct {
	BaseURL string
	Model   string
	Voice   string
	TempDir string
}

// OpenAITTS 使用 OpenAI speech 接口合成
type OpenAITTS struct {
	client  *openai.Client
	model   openai.SpeechModel
	voice   openai.SpeechVoice
	tempDir string
}

// NewOpenAITTS 创建 OpenAI TTS
func NewOpenAITTS(apiKey string, opts OpenAIOptions) *OpenAITTS {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = string(openai.TTSModel1)
	}
	if opts.Voice == "" {
		opts.Voice = string(openai.VoiceAlloy)
	}
	return &OpenAITTS{
		client:  openai.NewClientWithConfig(cfg),
		model:   openai.SpeechModel(opts.Model),
		voice:   openai.SpeechVoice(opts.Voice),
		tempDir: opts.TempDir,
	}
}

// Synthesize 分片顺序请求，拼接为一个 MP3
func (o *OpenAITTS) Synthesize(ctx context.Context, text, targetLanguage string) (string, error) {
	chunks := SplitText(text, openAIChunkLimit)
	if len(chunks) == 0 {
		return "", apperror.New(apperror.KindSynthesisError, "Failed to generate speech: no text to synthesize")
	}

	log.Printf("🔊 OpenAI 语音合成: %d 个片段, 模型 %s", len(chunks), o.model)

	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		audio, err := o.fetchChunk(ctx, chunk)
		if err != nil {
			return "", apperror.Wrap(apperror.KindSynthesisError, err,
				fmt.Sprintf("Failed to generate speech (chunk %d/%d)", i+1, len(chunks)))
		}
		parts = append(parts, audio)
	}

	path, err := writeAudio(o.tempDir, parts)
	if err != nil {
		return "", apperror.Wrap(apperror.KindSynthesisError, err, "Failed to generate speech")
	}

	log.Printf("✓ 语音合成完成: %s", path)
	return path, nil
}

func (o *OpenAITTS) fetchChunk(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("读取音频失败: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("OpenAI 返回空音频")
	}
	return audio, nil
}
