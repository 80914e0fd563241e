package batch

import "fmt"

// Distribute splits segments across workers by stride: worker r receives the
// segments at positions r, r+workers, r+2*workers, ... The result is a pure
// function of its inputs and always has exactly one entry per worker.
func Distribute(segments []SegmentDescriptor, workers int) ([]WorkAssignment, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, workers)
	}

	assignments := make([]WorkAssignment, workers)
	for r := range assignments {
		a, err := AssignmentFor(segments, r, workers)
		if err != nil {
			return nil, err
		}
		assignments[r] = a
	}
	return assignments, nil
}

// AssignmentFor returns only rank's share of a strided distribution over size
// workers. Every rank of a group can call it with the same segment list and
// agree on the partition without talking to each other.
func AssignmentFor(segments []SegmentDescriptor, rank, size int) (WorkAssignment, error) {
	if size <= 0 {
		return WorkAssignment{}, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, size)
	}
	if rank < 0 || rank >= size {
		return WorkAssignment{}, fmt.Errorf("rank %d out of range for %d workers", rank, size)
	}

	a := WorkAssignment{WorkerID: rank}
	for i := rank; i < len(segments); i += size {
		a.Segments = append(a.Segments, segments[i])
	}
	return a, nil
}
