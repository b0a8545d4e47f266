package node

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PartSeparator 分段生成结果之间的分隔
const PartSeparator = "\n\n"

func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// CountWords 以空白切分计数
func CountWords(s string) int {
	return len(strings.FieldsFunc(s, unicode.IsSpace))
}

// StripWrappingQuotes 去掉模型输出两端的空白与引号
func StripWrappingQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"“”'")
}

// JoinParts 按顺序拼接分段正文
func JoinParts(parts []string) string {
	return strings.Join(parts, PartSeparator)
}
