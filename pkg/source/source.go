// Package source 把上传文件、直链或 YouTube 视频落盘为本地临时文件
package source

import (
	"context"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/models"
)

// TempPrefix 源视频临时文件前缀，清理任务按它匹配
const TempPrefix = "source-"

// Options 获取源视频的限制
type Options struct {
	TempDir        string
	MaxFileSize    int64
	SupportedTypes []string
	HTTPClient     *http.Client
	YouTube        YouTubeClient
}

// Acquirer 获取源视频
type Acquirer struct {
	tempDir   string
	maxSize   int64
	supported []string
	http      *http.Client
	youtube   YouTubeClient
}

// NewAcquirer 创建 Acquirer
func NewAcquirer(opts Options) *Acquirer {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.YouTube == nil {
		opts.YouTube = NewYouTubeClient(opts.HTTPClient)
	}
	return &Acquirer{
		tempDir:   opts.TempDir,
		maxSize:   opts.MaxFileSize,
		supported: opts.SupportedTypes,
		http:      opts.HTTPClient,
		youtube:   opts.YouTube,
	}
}

// Supported 是否为支持的视频类型
func (a *Acquirer) Supported(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(mimeType)
	}
	return lo.Contains(a.supported, strings.ToLower(mediaType))
}

// ValidateUpload 校验上传文件的类型和大小，不写任何文件
func (a *Acquirer) ValidateUpload(file *models.UploadedFile) error {
	if !a.Supported(file.MIMEType) {
		return apperror.Newf(apperror.KindUnsupportedMedia,
			"Unsupported file type: %s. Supported types: %s", file.MIMEType, strings.Join(a.supported, ", "))
	}
	if a.maxSize > 0 && file.Size > a.maxSize {
		return apperror.Newf(apperror.KindPayloadTooLarge,
			"File too large: %s. Maximum size: %s", humanize.Bytes(uint64(file.Size)), humanize.Bytes(uint64(a.maxSize)))
	}
	return nil
}

// PersistUpload 把上传内容写入临时文件
func (a *Acquirer) PersistUpload(ctx context.Context, file *models.UploadedFile) (*models.LocalMedia, error) {
	if err := a.ValidateUpload(file); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to read uploaded file")
	}
	defer src.Close()

	path, written, err := a.writeTemp(ctx, src, filepath.Ext(file.Name), file.MIMEType)
	if err != nil {
		return nil, err
	}

	log.Printf("✓ 上传文件已保存: %s (%s)", file.Name, humanize.Bytes(uint64(written)))
	return &models.LocalMedia{
		Path:        path,
		MIMEType:    file.MIMEType,
		DisplayName: file.Name,
		Size:        written,
		Kind:        models.SourceUpload,
	}, nil
}

// Fetch 下载远端视频：YouTube 链接走 YouTube 下载，其余按直链处理
func (a *Acquirer) Fetch(ctx context.Context, rawURL string) (*models.LocalMedia, error) {
	if IsYouTubeURL(rawURL) {
		return a.fetchYouTube(ctx, rawURL)
	}
	return a.fetchDirect(ctx, rawURL)
}

// writeTemp 流式写入临时文件，超出大小限制时删除文件
func (a *Acquirer) writeTemp(ctx context.Context, r io.Reader, ext, mimeType string) (string, int64, error) {
	if ext == "" {
		ext = extensionFor(mimeType)
	}
	path := filepath.Join(a.tempDir, TempPrefix+uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", 0, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to create temp file")
	}

	reader := io.Reader(&ctxReader{ctx: ctx, r: r})
	if a.maxSize > 0 {
		reader = io.LimitReader(reader, a.maxSize+1)
	}

	written, copyErr := io.Copy(out, reader)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		if ctx.Err() != nil {
			return "", 0, apperror.Wrap(apperror.KindCanceled, copyErr, "Video download interrupted")
		}
		return "", 0, apperror.Wrap(apperror.KindSourceUnavailable, copyErr, "Failed to download video")
	case closeErr != nil:
		os.Remove(path)
		return "", 0, apperror.Wrap(apperror.KindSourceUnavailable, closeErr, "Failed to save video")
	case a.maxSize > 0 && written > a.maxSize:
		os.Remove(path)
		return "", 0, apperror.Newf(apperror.KindPayloadTooLarge,
			"File too large: more than %s", humanize.Bytes(uint64(a.maxSize)))
	case written == 0:
		os.Remove(path)
		return "", 0, apperror.New(apperror.KindSourceUnavailable, "Downloaded video is empty")
	}

	return path, written, nil
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".mp4"
}

// ctxReader 读取前检查 context，客户端断开后停止下载
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Remove 删除临时文件，失败只记录日志
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ 删除临时文件失败 %s: %v", path, err)
		return
	}
	log.Printf("🧹 已删除临时文件: %s", filepath.Base(path))
}

func sizeLabel(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(n))
}
