package batch

import "context"

// Group is a set of cooperating ranks that each run the same program. Rank 0
// coordinates: it splits the input, shares the segment list, and receives
// every rank's results.
type Group interface {
	Rank() int
	Size() int

	// Broadcast sends segs from rank 0 to every other rank and returns the
	// list each rank should work on. On rank 0, a non-nil cause is forwarded
	// instead so the other ranks stop rather than wait. Arguments are
	// ignored on the other ranks.
	Broadcast(ctx context.Context, segs []SegmentDescriptor, cause error) ([]SegmentDescriptor, error)

	// Gather sends local to rank 0. Rank 0 gets back every rank's result
	// ordered by rank; the other ranks get nil. A rank that never reports
	// gets a slot whose Err is a *WorkerInitError, so its segments count as
	// missing instead of failing the run.
	Gather(ctx context.Context, local WorkerResult) ([]WorkerResult, error)
}
