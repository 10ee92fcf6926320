package media

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/z-wentao/voicedub/pkg/apperror"
)

// Muxer 用 FFmpeg 替换视频的音轨
type Muxer struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

// NewMuxer 创建 Muxer
func NewMuxer(ffmpegPath, ffprobePath, tempDir string) *Muxer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Muxer{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
	}
}

// Remux 视频流原样复制，音频流编码为 AAC，以较短的流为准结束
// 同步调用，直到 ffmpeg 退出
func (m *Muxer) Remux(videoPath, audioPath string) (string, error) {
	outputPath := filepath.Join(m.tempDir, "dubbed-"+uuid.New().String()+".mp4")

	// ffmpeg -i video.mp4 -i audio.mp3 -map 0:v -map 1:a -c:v copy -c:a aac -shortest -y out.mp4
	cmd := exec.Command(m.ffmpegPath, remuxArgs(videoPath, audioPath, outputPath)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", apperror.Wrap(apperror.KindMuxError, err,
			fmt.Sprintf("Failed to merge audio and video (stderr: %s)", tail(stderr.String(), 500)))
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return "", apperror.New(apperror.KindMuxError, "Failed to merge audio and video: ffmpeg produced no output")
	}

	if duration, err := m.Probe(outputPath); err == nil {
		log.Printf("✓ 音视频合并完成: %s (%.1f 秒)", outputPath, duration)
	} else {
		log.Printf("✓ 音视频合并完成: %s", outputPath)
	}
	return outputPath, nil
}

func remuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v", // 第一个输入的视频流
		"-map", "1:a", // 第二个输入的音频流
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y",
		outputPath,
	}
}

// Probe 获取媒体时长（秒）
func (m *Muxer) Probe(path string) (float64, error) {
	// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 input.mp4
	cmd := exec.Command(m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe 执行失败: %w (stderr: %s)", err, stderr.String())
	}

	durationStr := strings.TrimSpace(stdout.String())
	if durationStr == "" {
		return 0, fmt.Errorf("ffprobe 未返回时长信息 (stderr: %s)", stderr.String())
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("解析时长失败: %w (output: %s)", err, durationStr)
	}
	return duration, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
