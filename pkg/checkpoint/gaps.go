package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Range is an inclusive run of page numbers
type Range struct {
	Start int
	End   int
}

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// FindGaps returns the maximal runs of [0, target) that are not in pages, ascending.
// An empty pages list yields the whole range.
func FindGaps(pages []int, target int) []Range {
	if target <= 0 {
		return []Range{}
	}

	present := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		present[p] = struct{}{}
	}

	gaps := []Range{}
	start := -1
	for i := 0; i < target; i++ {
		if _, ok := present[i]; ok {
			if start >= 0 {
				gaps = append(gaps, Range{Start: start, End: i - 1})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		gaps = append(gaps, Range{Start: start, End: target - 1})
	}
	return gaps
}

// Runs collapses pages into maximal consecutive runs, ascending
func Runs(pages []int) []Range {
	if len(pages) == 0 {
		return []Range{}
	}
	sorted := append([]int(nil), pages...)
	sort.Ints(sorted)

	runs := []Range{{Start: sorted[0], End: sorted[0]}}
	for _, p := range sorted[1:] {
		last := &runs[len(runs)-1]
		switch {
		case p == last.End:
		case p == last.End+1:
			last.End = p
		default:
			runs = append(runs, Range{Start: p, End: p})
		}
	}
	return runs
}

// FormatRanges renders ranges as "3-4, 7"
func FormatRanges(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
