package token

import "strings"

// Mask 保留开头 keepStart 个与结尾 keepEnd 个字符，其余替换为 *，输出长度与输入一致。
// 保留部分覆盖整个输入时全部替换。
func Mask(value string, keepStart, keepEnd int) string {
	if value == "" {
		return ""
	}
	keepStart = max(keepStart, 0)
	keepEnd = max(keepEnd, 0)

	runes := []rune(value)
	if keepStart+keepEnd >= len(runes) {
		return strings.Repeat("*", len(runes))
	}

	var b strings.Builder
	b.Grow(len(value))
	b.WriteString(string(runes[:keepStart]))
	b.WriteString(strings.Repeat("*", len(runes)-keepStart-keepEnd))
	b.WriteString(string(runes[len(runes)-keepEnd:]))
	return b.String()
}
