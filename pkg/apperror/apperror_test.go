package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCategory(t *testing.T) {
	tests := []struct {
		kind     Kind
		category string
		status   int
	}{
		{KindInvalidInput, CategoryUpload, http.StatusBadRequest},
		{KindUnsupportedMedia, CategoryUpload, http.StatusBadRequest},
		{KindPayloadTooLarge, CategoryUpload, http.StatusBadRequest},
		{KindSourceUnavailable, CategoryUpload, http.StatusBadRequest},
		{KindUploadError, CategoryProcessing, http.StatusInternalServerError},
		{KindRemoteProcessingFailed, CategoryProcessing, http.StatusInternalServerError},
		{KindTimeout, CategoryProcessing, http.StatusGatewayTimeout},
		{KindGenerationError, CategoryProcessing, http.StatusInternalServerError},
		{KindSynthesisError, CategoryProcessing, http.StatusInternalServerError},
		{KindMuxError, CategoryProcessing, http.StatusInternalServerError},
		{KindConfiguration, CategoryProcessing, http.StatusInternalServerError},
		{KindCanceled, CategoryProcessing, StatusClientClosedRequest},
		{Kind(99), CategoryInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.category, tt.kind.Category())
			assert.Equal(t, tt.status, tt.kind.DefaultStatus())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("stage upload: %w", Wrap(KindUploadError, cause, "Failed to upload video"))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindUploadError, e.Kind)
	assert.Equal(t, "Failed to upload video: connection reset", e.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindUploadError))
	assert.False(t, Is(err, KindTimeout))
}

func TestWithStatus(t *testing.T) {
	e := New(KindGenerationError, "quota").WithStatus(http.StatusTooManyRequests)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)
	assert.Equal(t, "GenerationError: quota", e.Error())
}

func TestStatusCodeDefaults(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, (&Error{Kind: KindTimeout}).StatusCode())
	assert.Equal(t, http.StatusTeapot, New(KindMuxError, "x").WithStatus(http.StatusTeapot).StatusCode())
}
