package media

import (
	"fmt"
	"time"
)

// Span is one planned cut of the input.
type Span struct {
	Start    time.Duration
	Duration time.Duration
}

// Plan cuts total into consecutive spans of chunk length. The last span
// holds the remainder. Total is rounded to the millisecond first, which is
// the precision ffmpeg is given. A zero-length input yields no spans.
func Plan(total, chunk time.Duration) ([]Span, error) {
	if chunk <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", chunk)
	}
	if total < 0 {
		return nil, fmt.Errorf("negative audio duration %s", total)
	}
	total = total.Round(time.Millisecond)

	var spans []Span
	for start := time.Duration(0); start < total; start += chunk {
		spans = append(spans, Span{Start: start, Duration: min(chunk, total-start)})
	}
	return spans, nil
}

// formatDuration formats a duration for ffmpeg (HH:MM:SS.mmm).
func formatDuration(d time.Duration) string {
	ms := d.Round(time.Millisecond).Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
