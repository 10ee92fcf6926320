// Package speech 把翻译文本合成为配音音频
package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/z-wentao/voicedub/pkg/config"
)

// Synthesizer 文本转语音，返回本地 MP3 文件路径
// 失败时不留下任何文件
type Synthesizer interface {
	Synthesize(ctx context.Context, text, targetLanguage string) (string, error)
}

// New 按配置选择 TTS 提供方
func New(cfg config.SpeechConfig, tempDir string) (Synthesizer, error) {
	switch cfg.Provider {
	case "", "google":
		return NewGoogleTTS(GoogleOptions{
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.Timeout,
			TempDir:     tempDir,
		}), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("speech.provider=openai 但未配置 OPENAI_API_KEY")
		}
		return NewOpenAITTS(cfg.OpenAI.APIKey, OpenAIOptions{
			Model:   cfg.OpenAI.Model,
			Voice:   cfg.OpenAI.Voice,
			TempDir: tempDir,
		}), nil
	default:
		return nil, fmt.Errorf("未知的 TTS 提供方: %s", cfg.Provider)
	}
}

// SplitText 按句子、单词边界切分文本，每段不超过 limit 个字符
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitSentences(text) {
		for _, piece := range splitLong(sentence, limit) {
			n := utf8.RuneCountInString(piece)
			if currentLen > 0 && currentLen+1+n > limit {
				flush()
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(piece)
			currentLen += n
		}
	}
	flush()

	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n', '。', '！', '？', '；':
		return true
	}
	return false
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if isSentenceEnd(r) {
			end := i + utf8.RuneLen(r)
			if s := strings.TrimSpace(text[start:end]); s != "" {
				sentences = append(sentences, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitLong 超长句子按单词切分，超长单词按字符硬切
func splitLong(sentence string, limit int) []string {
	if utf8.RuneCountInString(sentence) <= limit {
		return []string{sentence}
	}

	var pieces []string
	var current []rune
	for _, word := range strings.Fields(sentence) {
		runes := []rune(word)
		for len(runes) > limit {
			if len(current) > 0 {
				pieces = append(pieces, string(current))
				current = nil
			}
			pieces = append(pieces, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}
		if len(current) > 0 && len(current)+1+len(runes) > limit {
			pieces = append(pieces, string(current))
			current = nil
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, runes...)
	}
	if len(current) > 0 {
		pieces = append(pieces, string(current))
	}
	return pieces
}

// writeAudio 按顺序拼接音频片段写入临时文件
func writeAudio(tempDir string, parts [][]byte) (string, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	outputPath := filepath.Join(tempDir, "tts-"+uuid.New().String()+".mp3")

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("创建音频文件失败: %w", err)
	}

	for _, part := range parts {
		if _, err := file.Write(part); err != nil {
			file.Close()
			os.Remove(outputPath)
			return "", fmt.Errorf("写入音频文件失败: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("写入音频文件失败: %w", err)
	}
	return outputPath, nil
}
