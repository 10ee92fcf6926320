package source

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/models"
)

// youtubeItag 360p mp4，音视频合一
const youtubeItag = 18

var youtubeHosts = []string{
	"youtube.com",
	"www.youtube.com",
	"m.youtube.com",
	"music.youtube.com",
	"youtu.be",
	"www.youtu.be",
}

// YouTubeClient kkdai/youtube 客户端中用到的部分
type YouTubeClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// NewYouTubeClient 创建 YouTube 客户端
func NewYouTubeClient(httpClient *http.Client) YouTubeClient {
	return &youtube.Client{HTTPClient: httpClient}
}

// IsYouTubeURL 是否为 YouTube 视频链接
func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	if !lo.Contains(youtubeHosts, strings.ToLower(u.Hostname())) {
		return false
	}
	_, err = youtube.ExtractVideoID(rawURL)
	return err == nil
}

func (a *Acquirer) fetchYouTube(ctx context.Context, rawURL string) (*models.LocalMedia, error) {
	video, err := a.youtube.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to fetch YouTube video")
	}

	format, ok := pickFormat(video.Formats)
	if !ok {
		return nil, apperror.New(apperror.KindSourceUnavailable, "Failed to fetch YouTube video: no mp4 format with audio")
	}

	if a.maxSize > 0 && format.ContentLength > a.maxSize {
		return nil, apperror.Newf(apperror.KindPayloadTooLarge,
			"File too large: %s. Maximum size: %s", humanize.Bytes(uint64(format.ContentLength)), humanize.Bytes(uint64(a.maxSize)))
	}

	stream, _, err := a.youtube.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindSourceUnavailable, err, "Failed to fetch YouTube video")
	}
	defer stream.Close()

	localPath, written, err := a.writeTemp(ctx, stream, ".mp4", "video/mp4")
	if err != nil {
		return nil, err
	}

	name := video.Title
	if strings.TrimSpace(name) == "" {
		name = "YouTube Video"
	}

	log.Printf("✓ YouTube 视频已下载: %s (itag %d, %s)", name, format.ItagNo, humanize.Bytes(uint64(written)))
	return &models.LocalMedia{
		Path:        localPath,
		MIMEType:    "video/mp4",
		DisplayName: name,
		Size:        written,
		Kind:        models.SourceYouTube,
	}, nil
}

// pickFormat 优先 itag 18，否则取第一个带音频的 mp4
func pickFormat(formats youtube.FormatList) (*youtube.Format, bool) {
	if f, ok := lo.Find(formats, func(f youtube.Format) bool { return f.ItagNo == youtubeItag }); ok {
		return &f, true
	}

	withAudio := lo.Filter(formats, func(f youtube.Format, _ int) bool {
		return strings.HasPrefix(f.MimeType, "video/mp4") && f.AudioChannels > 0
	})
	if len(withAudio) == 0 {
		return nil, false
	}
	return &withAudio[0], true
}
