// ABOUTME: Language detection by CJK ideograph ratio
// ABOUTME: Maps the detected language to a synthesis language code

package speech

// Detected languages.
const (
	LangChinese = "chinese"
	LangEnglish = "english"
	LangUnknown = "unknown"
)

// chineseRatio is the share of ideographs above which text counts as Chinese.
const chineseRatio = 0.3

// Detection is the outcome of DetectLanguage with the counts behind it.
type Detection struct {
	Language     string `json:"detected_language"`
	ChineseChars int    `json:"chinese_chars"`
	TotalChars   int    `json:"total_chars"`
}

// DetectLanguage classifies text as chinese, english or unknown. Spaces are
// excluded from the total; other whitespace counts.
func DetectLanguage(text string) Detection {
	d := Detection{}
	for _, r := range text {
		if r == ' ' {
			continue
		}
		d.TotalChars++
		if IsIdeograph(r) {
			d.ChineseChars++
		}
	}

	switch {
	case d.TotalChars == 0:
		d.Language = LangUnknown
	case float64(d.ChineseChars)/float64(d.TotalChars) > chineseRatio:
		d.Language = LangChinese
	default:
		d.Language = LangEnglish
	}
	return d
}

// IsIdeograph reports whether r is in the CJK Unified Ideographs block.
func IsIdeograph(r rune) bool {
	return r >= '\u4e00' && r <= '\u9fff'
}

// ContainsIdeograph reports whether s has at least one CJK ideograph.
func ContainsIdeograph(s string) bool {
	for _, r := range s {
		if IsIdeograph(r) {
			return true
		}
	}
	return false
}

// TTSCode returns the synthesis language code for a detected language.
func TTSCode(language string) string {
	if language == LangChinese {
		return "zh-TW"
	}
	return "en"
}
