package analysis

import "strings"

// maxPerCategory caps the sentences kept per category.
const maxPerCategory = 5

// KeyInformation holds sentences picked out by keyword per category.
type KeyInformation struct {
	Methodology   []string `json:"methodology"`
	Findings      []string `json:"findings"`
	Limitations   []string `json:"limitations"`
	Contributions []string `json:"contributions"`
}

var (
	methodKeywords       = []string{"method", "approach", "algorithm", "technique", "framework", "model"}
	findingKeywords      = []string{"find", "found", "result", "show", "demonstrate", "reveal", "discover"}
	limitationKeywords   = []string{"limitation", "challenge", "weakness", "drawback", "constraint"}
	contributionKeywords = []string{"contribution", "we propose", "we present", "we introduce", "novel"}
)

// ExtractKeyInformation keeps, for each category, the first five sentences
// containing one of its keywords. A sentence may appear in several categories.
func ExtractKeyInformation(text string) KeyInformation {
	var info KeyInformation
	for _, s := range sentences(text) {
		lower := strings.ToLower(s)
		info.Methodology = appendMatch(info.Methodology, s, lower, methodKeywords)
		info.Findings = appendMatch(info.Findings, s, lower, findingKeywords)
		info.Limitations = appendMatch(info.Limitations, s, lower, limitationKeywords)
		info.Contributions = appendMatch(info.Contributions, s, lower, contributionKeywords)
	}
	return info
}

func appendMatch(dst []string, sentence, lower string, keywords []string) []string {
	if len(dst) >= maxPerCategory || !containsAny(lower, keywords) {
		return dst
	}
	return append(dst, sentence)
}

// IsEmpty reports whether nothing was extracted.
func (k KeyInformation) IsEmpty() bool {
	return len(k.Methodology)+len(k.Findings)+len(k.Limitations)+len(k.Contributions) == 0
}
