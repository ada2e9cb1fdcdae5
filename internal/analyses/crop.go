package analyses

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	unknownCrop   = "Unknown crop"
	unlabeledCrop = "Unknown"
)

// CropType returns the first known crop whose name appears in the label,
// capitalised. A nil or empty label yields "Unknown".
func CropType(label *string, crops []string) string {
	if label == nil || strings.TrimSpace(*label) == "" {
		return unlabeledCrop
	}
	lower := strings.ToLower(*label)
	for _, crop := range crops {
		crop = strings.ToLower(strings.TrimSpace(crop))
		if crop != "" && strings.Contains(lower, crop) {
			return capitalize(crop)
		}
	}
	return unknownCrop
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
