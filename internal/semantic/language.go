package semantic

// Language classifies the script mix of a reference string.
type Language string

const (
	LangChinese Language = "chinese"
	LangEnglish Language = "english"
	LangMixed   Language = "mixed"
	LangUnknown Language = "unknown"
)

// isCJK reports whether r falls in the CJK Unified, Extension A, or
// Extension B ranges.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0x20000 && r <= 0x2A6DF:
		return true
	default:
		return false
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// DetectLanguage classifies s by the 30% codepoint-ratio rule: a script
// whose codepoints make up at least 30% of the string counts as present;
// both present is Mixed, neither is Unknown.
func DetectLanguage(s string) Language {
	runes := []rune(s)
	if len(runes) == 0 {
		return LangUnknown
	}

	var cjk, ascii int
	for _, r := range runes {
		if isCJK(r) {
			cjk++
		} else if isASCIILetter(r) {
			ascii++
		}
	}

	total := float64(len(runes))
	cjkRatio := float64(cjk) / total
	asciiRatio := float64(ascii) / total

	switch {
	case cjkRatio >= 0.3 && asciiRatio >= 0.3:
		return LangMixed
	case cjkRatio >= 0.3:
		return LangChinese
	case asciiRatio >= 0.3:
		return LangEnglish
	default:
		return LangUnknown
	}
}
