package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindGaps(t *testing.T) {
	tests := []struct {
		name   string
		pages  []int
		target int
		want   []Range
	}{
		{"middle and tail", []int{0, 1, 2, 5, 6}, 8, []Range{{3, 4}, {7, 7}}},
		{"empty input", nil, 8, []Range{{0, 7}}},
		{"zero target", []int{0, 1}, 0, []Range{}},
		{"complete", []int{0, 1, 2}, 3, []Range{}},
		{"leading gap", []int{2, 3}, 4, []Range{{0, 1}}},
		{"unsorted with duplicates", []int{6, 0, 0, 2}, 7, []Range{{1, 1}, {3, 5}}},
		{"pages beyond target ignored", []int{0, 10}, 3, []Range{{1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindGaps(tt.pages, tt.target))
		})
	}
}

func TestRuns(t *testing.T) {
	assert.Equal(t, []Range{}, Runs(nil))
	assert.Equal(t, []Range{{1, 3}, {7, 7}, {9, 10}}, Runs([]int{10, 1, 2, 3, 7, 9, 2}))
}

func TestFormatRanges(t *testing.T) {
	assert.Equal(t, "3-4, 7", FormatRanges([]Range{{3, 4}, {7, 7}}))
	assert.Equal(t, "", FormatRanges(nil))
}
