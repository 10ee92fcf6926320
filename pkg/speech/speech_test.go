package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/config"
)

func TestSplitTextRespectsLimit(t *testing.T) {
	text := strings.Repeat("Hola, ¿cómo estás hoy? ", 40) + strings.Repeat("x", 450)
	chunks := SplitText(text, 200)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
		assert.NotEmpty(t, c)
	}

	// 去掉空白后内容不丢失
	joined := strings.Join(chunks, "")
	assert.Equal(t, strings.Join(strings.Fields(text), ""), strings.Join(strings.Fields(joined), ""))
}

func TestSplitTextKeepsSentencesTogether(t *testing.T) {
	chunks := SplitText("Primera frase. Segunda frase! Tercera?", 20)
	assert.Equal(t, []string{"Primera frase.", "Segunda frase!", "Tercera?"}, chunks)

	chunks = SplitText("Primera frase. Segunda frase!", 200)
	assert.Equal(t, []string{"Primera frase. Segunda frase!"}, chunks)
}

func TestSplitTextEmpty(t *testing.T) {
	assert.Empty(t, SplitText("   ", 200))
}

func TestSplitTextMultibyte(t *testing.T) {
	chunks := SplitText(strings.Repeat("你好世界", 100), 200)
	require.Len(t, chunks, 2)
	assert.Equal(t, 200, utf8.RuneCountInString(chunks[0]))
}

func newGoogleServer(t *testing.T, failIdx int) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "tw-ob", q.Get("client"))
		idx, _ := strconv.Atoi(q.Get("idx"))
		if idx == failIdx {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		// 打乱返回顺序
		time.Sleep(time.Duration(10-idx%10) * time.Millisecond)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("[" + q.Get("tl") + ":" + q.Get("idx") + "]"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGoogleTTSConcatenatesInOrder(t *testing.T) {
	srv, calls := newGoogleServer(t, -1)
	dir := t.TempDir()
	tts := NewGoogleTTS(GoogleOptions{BaseURL: srv.URL, Concurrency: 3, TempDir: dir})

	text := strings.Repeat("Esta es una frase de prueba bastante larga. ", 15)
	want := len(SplitText(text, googleChunkLimit))
	require.Greater(t, want, 1)

	path, err := tts.Synthesize(context.Background(), text, "es")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var expected strings.Builder
	for i := 0; i < want; i++ {
		expected.WriteString("[es:" + strconv.Itoa(i) + "]")
	}
	assert.Equal(t, expected.String(), string(data))
	assert.Equal(t, int32(want), atomic.LoadInt32(calls))
}

func TestGoogleTTSUsesTTSLanguageCode(t *testing.T) {
	srv, _ := newGoogleServer(t, -1)
	tts := NewGoogleTTS(GoogleOptions{BaseURL: srv.URL, TempDir: t.TempDir()})

	path, err := tts.Synthesize(context.Background(), "你好", "zh")
	require.NoError(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "[zh-CN:0]", string(data))
}

func TestGoogleTTSChunkFailureLeavesNoFile(t *testing.T) {
	srv, _ := newGoogleServer(t, 1)
	dir := t.TempDir()
	tts := NewGoogleTTS(GoogleOptions{BaseURL: srv.URL, Concurrency: 2, TempDir: dir})

	_, err := tts.Synthesize(context.Background(), strings.Repeat("Frase de prueba número uno. ", 20), "es")
	assert.True(t, apperror.Is(err, apperror.KindSynthesisError))

	matches, _ := filepath.Glob(filepath.Join(dir, "tts-*"))
	assert.Empty(t, matches)
}

func TestGoogleTTSEmptyText(t *testing.T) {
	tts := NewGoogleTTS(GoogleOptions{BaseURL: "http://127.0.0.1:0", TempDir: t.TempDir()})
	_, err := tts.Synthesize(context.Background(), "  ", "es")
	assert.True(t, apperror.Is(err, apperror.KindSynthesisError))
}

func TestOpenAITTS(t *testing.T) {
	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		inputs = append(inputs, r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	tts := NewOpenAITTS("sk-test", OpenAIOptions{BaseURL: srv.URL + "/v1", TempDir: t.TempDir()})
	path, err := tts.Synthesize(context.Background(), "Hola mundo.", "es")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
	assert.Len(t, inputs, 1)
}

func TestOpenAITTSFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tts := NewOpenAITTS("bad", OpenAIOptions{BaseURL: srv.URL + "/v1", TempDir: dir})
	_, err := tts.Synthesize(context.Background(), "Hola.", "es")
	assert.True(t, apperror.Is(err, apperror.KindSynthesisError))

	matches, _ := filepath.Glob(filepath.Join(dir, "tts-*"))
	assert.Empty(t, matches)
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(config.SpeechConfig{Provider: "google"}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &GoogleTTS{}, s)

	_, err = New(config.SpeechConfig{Provider: "openai"}, t.TempDir())
	assert.Error(t, err)

	s, err = New(config.SpeechConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "sk"}}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &OpenAITTS{}, s)

	_, err = New(config.SpeechConfig{Provider: "polly"}, t.TempDir())
	assert.Error(t, err)
}
