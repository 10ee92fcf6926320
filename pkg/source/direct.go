package source

import (
	"bytes"
	"context"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/models"
)

// sniffLen mimetype 默认读取的头部长度
const sniffLen = 3072

// fetchDirect 直链下载：校验状态码、类型、大小后流式落盘
func (a *Acquirer) fetchDirect(ctx context.Context, rawURL string) (*models.LocalMedia, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, apperror.Newf(apperror.KindInvalidInput, "Invalid video URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidInput, err, "Invalid video URL")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperror.Wrap(apperror.KindCanceled, err, "Video download interrupted")
		}
		return nil, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to fetch video from URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Newf(apperror.KindSourceUnavailable,
			"Failed to fetch video from URL: %s", resp.Status)
	}

	if a.maxSize > 0 && resp.ContentLength > a.maxSize {
		return nil, apperror.Newf(apperror.KindPayloadTooLarge,
			"File too large: %s. Maximum size: %s", sizeLabel(resp.ContentLength), humanize.Bytes(uint64(a.maxSize)))
	}

	// 先读头部，Content-Type 缺失时用内容嗅探
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to download video")
	}
	head = head[:n]

	mimeType, ok := a.resolveType(resp.Header.Get("Content-Type"), head)
	if !ok {
		return nil, apperror.Newf(apperror.KindUnsupportedMedia,
			"Unsupported file type: %s. Supported types: %s", mimeType, strings.Join(a.supported, ", "))
	}

	name := displayName(parsed)
	body := io.MultiReader(bytes.NewReader(head), resp.Body)
	localPath, written, err := a.writeTemp(ctx, body, path.Ext(name), mimeType)
	if err != nil {
		return nil, err
	}

	log.Printf("✓ 视频已下载: %s (%s, %s)", name, mimeType, humanize.Bytes(uint64(written)))
	return &models.LocalMedia{
		Path:        localPath,
		MIMEType:    mimeType,
		DisplayName: name,
		Size:        written,
		Kind:        models.SourceURL,
	}, nil
}

// resolveType 优先使用响应头，缺失或为 octet-stream 时嗅探
func (a *Acquirer) resolveType(header string, head []byte) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err == nil && mediaType != "" && mediaType != "application/octet-stream" && mediaType != "binary/octet-stream" {
		mediaType = strings.ToLower(mediaType)
		return mediaType, a.Supported(mediaType)
	}

	detected := mimetype.Detect(head)
	if a.Supported(detected.String()) {
		return detected.String(), true
	}
	// mimetype 的别名，比如 video/x-msvideo 对应 video/avi
	if match, found := lo.Find(a.supported, detected.Is); found {
		return match, true
	}
	return detected.String(), false
}

// displayName URL 路径最后一段，没有时为 video.mp4
func displayName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "video.mp4"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
