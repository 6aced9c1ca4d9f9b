package papersources

import "github.com/helixir/scholar-aggregator/internal/domain"

// SourcePapers is the result list of one source, as fed to Merge.
type SourcePapers struct {
	Source domain.SourceType
	Papers []domain.Paper
}

// Merge concatenates the lists in order and drops duplicates. The first
// record wins: a record is skipped when its non-empty id was already seen,
// or failing that when its non-empty normalized title was already seen.
// Otherwise it is kept and both its keys are remembered. Matching is exact,
// so ids are compared across sources as plain strings.
func Merge(lists []SourcePapers) []domain.Paper {
	total := 0
	for _, l := range lists {
		total += len(l.Papers)
	}

	merged := make([]domain.Paper, 0, total)
	seenIDs := make(map[string]struct{}, total)
	seenTitles := make(map[string]struct{}, total)

	for _, l := range lists {
		for _, p := range l.Papers {
			if p.ID != "" {
				if _, dup := seenIDs[p.ID]; dup {
					continue
				}
			}
			title := domain.NormalizeTitle(p.Title)
			if title != "" {
				if _, dup := seenTitles[title]; dup {
					continue
				}
			}

			merged = append(merged, p)
			if p.ID != "" {
				seenIDs[p.ID] = struct{}{}
			}
			if title != "" {
				seenTitles[title] = struct{}{}
			}
		}
	}

	return merged
}
