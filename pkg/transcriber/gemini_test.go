package transcriber

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/models"
)

// fakeFiles 按顺序返回预设状态
type fakeFiles struct {
	uploadErr error
	uploaded  []byte
	opts      *genai.UploadFileOptions
	states    []genai.FileState
	getErr    error
	getCalls  int
	deleted   []string
	deleteErr error
}

func (f *fakeFiles) UploadFile(_ context.Context, _ string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	f.opts = opts
	return &genai.File{
		Name:     "files/abc123",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc123",
		MIMEType: opts.MIMEType,
		State:    genai.FileStateProcessing,
	}, nil
}

func (f *fakeFiles) GetFile(_ context.Context, name string) (*genai.File, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	state := genai.FileStateProcessing
	if len(f.states) > 0 {
		state = f.states[0]
		f.states = f.states[1:]
	}
	return &genai.File{Name: name, State: state}, nil
}

func (f *fakeFiles) DeleteFile(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	model string
	parts []genai.Part
}

func (g *fakeGenerator) GenerateContent(_ context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.model = model
	g.parts = parts
	return g.resp, g.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}},
		}},
	}
}

func newTestClient(files *fakeFiles, gen *fakeGenerator, attempts int) (*GeminiClient, *[]time.Duration) {
	c := NewGeminiClientWith(files, gen, Options{PollInterval: 2 * time.Second, MaxPollAttempts: attempts})
	waits := &[]time.Duration{}
	c.wait = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c, waits
}

func TestUploadSendsFileWithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0644))

	files := &fakeFiles{}
	c, _ := newTestClient(files, &fakeGenerator{}, 60)

	handle, err := c.Upload(context.Background(), path, "video/mp4", "clip.mp4")
	require.NoError(t, err)

	assert.Equal(t, "files/abc123", handle.Name)
	assert.Equal(t, models.StatePending, handle.State)
	assert.Equal(t, "video/mp4", handle.MIMEType)
	assert.Equal(t, []byte("video-bytes"), files.uploaded)
	assert.Equal(t, "clip.mp4", files.opts.DisplayName)
}

func TestUploadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	c, _ := newTestClient(&fakeFiles{uploadErr: errors.New("503")}, &fakeGenerator{}, 60)
	_, err := c.Upload(context.Background(), path, "video/mp4", "clip.mp4")
	assert.True(t, apperror.Is(err, apperror.KindUploadError))
}

func TestAwaitReadyTransitions(t *testing.T) {
	tests := []struct {
		name      string
		states    []genai.FileState
		wantKind  apperror.Kind
		wantCalls int
	}{
		{"ready immediately", []genai.FileState{genai.FileStateActive}, 0, 1},
		{"pending then ready", []genai.FileState{genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateActive}, 0, 3},
		{"pending then failed", []genai.FileState{genai.FileStateProcessing, genai.FileStateFailed}, apperror.KindRemoteProcessingFailed, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &fakeFiles{states: tt.states}
			c, waits := newTestClient(files, &fakeGenerator{}, 60)

			err := c.AwaitReady(context.Background(), &models.RemoteHandle{Name: "files/abc123"})
			if tt.wantKind == 0 {
				require.NoError(t, err)
			} else {
				assert.True(t, apperror.Is(err, tt.wantKind))
			}
			assert.Equal(t, tt.wantCalls, files.getCalls)
			assert.Len(t, *waits, tt.wantCalls-1)
		})
	}
}

func TestAwaitReadyTimesOutAfterCeiling(t *testing.T) {
	files := &fakeFiles{}
	c, waits := newTestClient(files, &fakeGenerator{}, 60)

	err := c.AwaitReady(context.Background(), &models.RemoteHandle{Name: "files/abc123"})
	assert.True(t, apperror.Is(err, apperror.KindTimeout))
	assert.Equal(t, 60, files.getCalls)
	assert.Len(t, *waits, 59)
	for _, d := range *waits {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestAwaitReadyPollError(t *testing.T) {
	files := &fakeFiles{getErr: errors.New("boom")}
	c, _ := newTestClient(files, &fakeGenerator{}, 60)

	err := c.AwaitReady(context.Background(), &models.RemoteHandle{Name: "files/abc123"})
	assert.True(t, apperror.Is(err, apperror.KindRemoteProcessingFailed))
	assert.Equal(t, 1, files.getCalls)
}

func TestTranslate(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("[00:01] Hola")}
	c, _ := newTestClient(&fakeFiles{}, gen, 60)

	text, err := c.Translate(context.Background(), &models.RemoteHandle{URI: "u", MIMEType: "video/mp4"}, "es")
	require.NoError(t, err)
	assert.Equal(t, "[00:01] Hola", text)
	assert.Equal(t, "gemini-2.5-flash", gen.model)

	require.Len(t, gen.parts, 2)
	assert.Equal(t, genai.FileData{MIMEType: "video/mp4", URI: "u"}, gen.parts[0])
	prompt, ok := gen.parts[1].(genai.Text)
	require.True(t, ok)
	assert.Contains(t, string(prompt), "to Spanish")
	assert.Contains(t, string(prompt), "[MM:SS] Translated text")
}

func TestTranslateFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"service error", &fakeGenerator{err: errors.New("quota exceeded")}},
		{"empty text", &fakeGenerator{resp: textResponse("   ")}},
		{"no candidates", &fakeGenerator{resp: &genai.GenerateContentResponse{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(&fakeFiles{}, tt.gen, 60)
			_, err := c.Translate(context.Background(), &models.RemoteHandle{}, "es")
			assert.True(t, apperror.Is(err, apperror.KindGenerationError))
		})
	}
}

func TestReleaseIsBestEffort(t *testing.T) {
	files := &fakeFiles{deleteErr: errors.New("not found")}
	c, _ := newTestClient(files, &fakeGenerator{}, 60)

	c.Release(context.Background(), &models.RemoteHandle{Name: "files/abc123"})
	c.Release(context.Background(), nil)
	assert.Equal(t, []string{"files/abc123"}, files.deleted)
}
