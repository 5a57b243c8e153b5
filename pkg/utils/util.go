package utils

import "strings"

// Deref はポインタを安全にデリファレンスします。nil の場合はゼロ値を返します。
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// MaskSecret はログ出力用に秘密値の末尾 4 文字だけを残して伏せ字にします。
// 8 文字未満の値はすべて伏せます。
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) < 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
