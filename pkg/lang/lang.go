// Package lang 目标语言代码的规范化
package lang

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Parse 解析 BCP 47 语言代码，失败时返回 false
func Parse(code string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// DisplayName 英文名称，如 "es" -> "Spanish"
// 非语言代码（例如用户直接写了 "Spanish"）原样返回
func DisplayName(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return strings.TrimSpace(code)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.TrimSpace(code)
}

// googleTTSOverrides Google TTS 使用的非标准代码
var googleTTSOverrides = map[string]string{
	"zh":      "zh-CN",
	"zh-Hans": "zh-CN",
	"zh-Hant": "zh-TW",
	"he":      "iw",
}

// TTSCode Google TTS 的 tl 参数
func TTSCode(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return strings.TrimSpace(code)
	}

	s := tag.String()
	if override, ok := googleTTSOverrides[s]; ok {
		return override
	}
	return s
}
