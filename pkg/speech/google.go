package speech

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/lang"
)

const (
	googleTTSURL     = "https://translate.google.com/translate_tts"
	googleChunkLimit = 200
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// GoogleOptions Google TTS 参数
type GoogleOptions struct {
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
	TempDir     string
}

// GoogleTTS 调用 Google Translate 的 TTS 接口
// 单次请求最多 200 个字符，长文本切片并发请求后按顺序拼接
type GoogleTTS struct {
	client      *http.Client
	baseURL     string
	concurrency int
	tempDir     string
}

// NewGoogleTTS 创建 Google TTS
func NewGoogleTTS(opts GoogleOptions) *GoogleTTS {
	if opts.BaseURL == "" {
		opts.BaseURL = googleTTSURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &GoogleTTS{
		client:      &http.Client{Timeout: opts.Timeout},
		baseURL:     opts.BaseURL,
		concurrency: opts.Concurrency,
		tempDir:     opts.TempDir,
	}
}

type chunkTask struct {
	index int
	text  string
}

type chunkResult struct {
	index int
	audio []byte
	err   error
}

// Synthesize 切片、并发合成、按原顺序拼接
func (g *GoogleTTS) Synthesize(ctx context.Context, text, targetLanguage string) (string, error) {
	chunks := SplitText(text, googleChunkLimit)
	if len(chunks) == 0 {
		return "", apperror.New(apperror.KindSynthesisError, "Failed to generate speech: no text to synthesize")
	}

	tl := lang.TTSCode(targetLanguage)
	log.Printf("🔊 开始语音合成: %d 个片段, 语言 %s", len(chunks), tl)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan chunkTask, len(chunks))
	results := make(chan chunkResult, len(chunks))

	workers := g.concurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for task := range tasks {
				audio, err := g.fetchChunk(ctx, task.text, tl, task.index, len(chunks))
				results <- chunkResult{index: task.index, audio: audio, err: err}
			}
		}()
	}

	for i, chunk := range chunks {
		tasks <- chunkTask{index: i, text: chunk}
	}
	close(tasks)

	parts := make([][]byte, len(chunks))
	for i := 0; i < len(chunks); i++ {
		result := <-results
		if result.err != nil {
			// 取消剩余请求，缓冲 channel 保证 worker 不会阻塞
			cancel()
			return "", apperror.Wrap(apperror.KindSynthesisError, result.err,
				fmt.Sprintf("Failed to generate speech (chunk %d/%d)", result.index+1, len(chunks)))
		}
		parts[result.index] = result.audio
	}

	path, err := writeAudio(g.tempDir, parts)
	if err != nil {
		return "", apperror.Wrap(apperror.KindSynthesisError, err, "Failed to generate speech")
	}

	log.Printf("✓ 语音合成完成: %s", path)
	return path, nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, text, tl string, idx, total int) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", tl)
	params.Set("q", text)
	params.Set("total", strconv.Itoa(total))
	params.Set("idx", strconv.Itoa(idx))
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 TTS 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("TTS 返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 TTS 响应失败: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS 返回空音频")
	}
	return audio, nil
}
