package transcriber

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Segment 一段带时间戳的翻译
type Segment struct {
	Offset time.Duration
	Text   string
}

// [MM:SS] 或 [HH:MM:SS]，允许前面有列表符号 "-" / "*"
var timestampLine = regexp.MustCompile(`^\s*(?:[-*]\s*)?\*{0,2}\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]\*{0,2}\s*(.*)$`)

// ParseSegments 解析模型输出的 "[MM:SS] text" 行
// 没有时间戳的行追加到上一段
func ParseSegments(text string) []Segment {
	var segments []Segment

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := timestampLine.FindStringSubmatch(line)
		if m == nil {
			if len(segments) > 0 {
				last := &segments[len(segments)-1]
				last.Text = strings.TrimSpace(last.Text + " " + line)
			}
			continue
		}

		segments = append(segments, Segment{
			Offset: parseOffset(m[1], m[2], m[3]),
			Text:   strings.TrimSpace(m[4]),
		})
	}

	return segments
}

func parseOffset(a, b, c string) time.Duration {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	if c == "" {
		return time.Duration(first)*time.Minute + time.Duration(second)*time.Second
	}
	third, _ := strconv.Atoi(c)
	return time.Duration(first)*time.Hour + time.Duration(second)*time.Minute + time.Duration(third)*time.Second
}

// SpokenScript 去掉时间戳后用于 TTS 的文本
// 模型没有按格式输出时直接返回原文
func SpokenScript(text string) string {
	segments := ParseSegments(text)
	if len(segments) == 0 {
		return strings.TrimSpace(text)
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}
