package cache

// ValidKey 判断 hash 是否只由 ASCII 字母、数字以及 . _ - 组成且非空。
// 除 . 与 .. 外，通过校验的 key 可以直接作为文件名或对象键。
func ValidKey(candidate string) bool {
	if candidate == "" {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		switch c := candidate[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
