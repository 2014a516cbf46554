package chatlog

import "strings"

// CleanText strips a UTF-8 BOM and the invisible bidirectional control
// characters (LRM, RLM, LRE/RLE/PDF/LRO/RLO) that chat exports sprinkle around
// timestamps and names. Run before parsing; the header pattern never matches
// otherwise.
func CleanText(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.Map(func(r rune) rune {
		if r == '‎' || r == '‏' {
			return -1
		}
		if r >= '‪' && r <= '‮' {
			return -1
		}
		return r
	}, s)
}
