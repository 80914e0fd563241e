package batch

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FailurePolicy decides what a failed or missing segment contributes to the transcript.
type FailurePolicy string

const (
	// FailureOmit leaves failed segments out of the text.
	FailureOmit FailurePolicy = "omit"
	// FailurePlaceholder writes a marker line in place of a failed segment.
	FailurePlaceholder FailurePolicy = "placeholder"
)

// DefaultPlaceholder stands in for a failed segment; %d becomes its index.
const DefaultPlaceholder = "[segment %d: transcription failed]"

// ParseFailurePolicy accepts "omit" or "placeholder". Empty means omit.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureOmit:
		return FailureOmit, nil
	case FailurePlaceholder:
		return FailurePlaceholder, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (use omit or placeholder)", s)
	}
}

// AggregateOptions controls how results become text.
type AggregateOptions struct {
	Separator   string // between segments; empty means "\n"
	OnFailure   FailurePolicy
	Placeholder string // the first %d is replaced by the index
	Expected    int    // total segment count; indices below it with no result are missing
}

// Transcript is the merged output of a run.
type Transcript struct {
	Text     string
	Included int   // segments whose text made it into Text
	Failed   []int // indices that reported StatusFailed
	Missing  []int // indices no worker returned, e.g. after a worker failed to start
}

// Aggregate merges every worker's results into one transcript ordered by
// segment index. The output depends only on the result contents, never on
// worker count, assignment or the order results arrived in.
func Aggregate(results []WorkerResult, opts AggregateOptions) Transcript {
	var all []SegmentResult
	for _, w := range results {
		all = append(all, w.Results...)
	}

	// Ties on index only happen with duplicated results; prefer a success,
	// then the lexically smallest text, so the pick is still deterministic.
	slices.SortFunc(all, func(a, b SegmentResult) int {
		if c := cmp.Compare(a.Index, b.Index); c != 0 {
			return c
		}
		if a.Failed() != b.Failed() {
			if a.Failed() {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.Text, b.Text)
	})

	byIndex := make(map[int]SegmentResult, len(all))
	var order []int
	for _, r := range all {
		if _, seen := byIndex[r.Index]; seen {
			continue
		}
		byIndex[r.Index] = r
		order = append(order, r.Index)
	}

	var t Transcript
	for i := 0; i < opts.Expected; i++ {
		if _, ok := byIndex[i]; !ok {
			t.Missing = append(t.Missing, i)
			order = append(order, i)
		}
	}
	slices.Sort(order)

	var parts []string
	for _, i := range order {
		r, ok := byIndex[i]
		if ok && !r.Failed() {
			parts = append(parts, strings.TrimSpace(r.Text))
			t.Included++
			continue
		}
		if ok {
			t.Failed = append(t.Failed, i)
		}
		if opts.OnFailure == FailurePlaceholder {
			parts = append(parts, placeholder(opts.Placeholder, i))
		}
	}

	sep := opts.Separator
	if sep == "" {
		sep = "\n"
	}
	t.Text = strings.Join(parts, sep)
	return t
}

func placeholder(format string, index int) string {
	if format == "" {
		format = DefaultPlaceholder
	}
	// Only the first %d is the index; any other verb is literal text.
	return strings.Replace(format, "%d", strconv.Itoa(index), 1)
}
