package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSegments(n int) []SegmentDescriptor {
	segs := make([]SegmentDescriptor, n)
	for i := range segs {
		segs[i] = SegmentDescriptor{
			Index:    i,
			Path:     fmt.Sprintf("/tmp/segment_%04d.mp3", i),
			Start:    time.Duration(i) * 300 * time.Second,
			Duration: 300 * time.Second,
		}
	}
	return segs
}

func indices(segs []SegmentDescriptor) []int {
	out := make([]int, len(segs))
	for i, s := range segs {
		out[i] = s.Index
	}
	return out
}

func TestDistributeTwoWorkersThreeSegments(t *testing.T) {
	got, err := Distribute(makeSegments(3), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].WorkerID)
	assert.Equal(t, []int{0, 2}, indices(got[0].Segments))
	assert.Equal(t, 1, got[1].WorkerID)
	assert.Equal(t, []int{1}, indices(got[1].Segments))
}

func TestDistributeIsDeterministicPartition(t *testing.T) {
	for n := 0; n <= 25; n++ {
		for w := 1; w <= 7; w++ {
			t.Run(fmt.Sprintf("n=%d/w=%d", n, w), func(t *testing.T) {
				segs := makeSegments(n)
				first, err := Distribute(segs, w)
				require.NoError(t, err)
				second, err := Distribute(segs, w)
				require.NoError(t, err)
				assert.Equal(t, first, second)
				require.Len(t, first, w)

				seen := make(map[int]int)
				for r, a := range first {
					assert.Equal(t, r, a.WorkerID)
					prev := -1
					for _, s := range a.Segments {
						assert.Equal(t, r, s.Index%w, "segment %d on wrong worker", s.Index)
						assert.Greater(t, s.Index, prev, "assignment must keep input order")
						prev = s.Index
						seen[s.Index]++
					}
				}
				assert.Len(t, seen, n)
				for idx, count := range seen {
					assert.Equal(t, 1, count, "segment %d assigned %d times", idx, count)
				}
			})
		}
	}
}

func TestDistributeRejectsNonPositiveWorkers(t *testing.T) {
	for _, w := range []int{0, -1, -8} {
		_, err := Distribute(makeSegments(3), w)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	}
}

func TestDistributeEmptyInput(t *testing.T) {
	got, err := Distribute(nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.Empty(t, a.Segments)
	}
}

func TestAssignmentForMatchesDistribute(t *testing.T) {
	segs := makeSegments(11)
	all, err := Distribute(segs, 4)
	require.NoError(t, err)

	for r := 0; r < 4; r++ {
		a, err := AssignmentFor(segs, r, 4)
		require.NoError(t, err)
		assert.Equal(t, all[r], a)
	}
}

func TestAssignmentForRejectsBadRank(t *testing.T) {
	segs := makeSegments(4)

	_, err := AssignmentFor(segs, 2, 2)
	assert.Error(t, err)
	_, err = AssignmentFor(segs, -1, 2)
	assert.Error(t, err)
	_, err = AssignmentFor(segs, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
}
