package transcriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseWhisperOutput(t *testing.T) {
	out := `[00:00:00.000 --> 00:00:05.000]  Hello there.
[00:00:05.000 --> 00:00:09.500]  General Kenobi.
  You are a bold one.
`
	got := parseWhisperOutput(out)
	assert.Equal(t, []Segment{
		{Start: 0, End: 5 * time.Second, Text: "Hello there."},
		{Start: 5 * time.Second, End: 9500 * time.Millisecond, Text: "General Kenobi. You are a bold one."},
	}, got)
}

func TestParseWhisperOutputPlainText(t *testing.T) {
	got := parseWhisperOutput("just text\nmore text")
	assert.Equal(t, []Segment{{Text: "just text more text"}}, got)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"00:00:00.000", 0},
		{"00:01:02.500", time.Minute + 2500*time.Millisecond},
		{"01:00:00.000", time.Hour},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseTimestamp(tt.in), tt.in)
	}
}

func TestCleanTranscriptText(t *testing.T) {
	in := "[00:00:00.000 --> 00:00:02.000]  One.\n\n[00:00:02.000 --> 00:00:04.000]  Two.\n"
	assert.Equal(t, "One. Two.", cleanTranscriptText(in))
	assert.Equal(t, "", cleanTranscriptText("\n\n"))
}

func TestJoinSegments(t *testing.T) {
	segs := []Segment{{Text: " Hello"}, {Text: ""}, {Text: "world. "}}
	assert.Equal(t, "Hello world.", joinSegments(segs))
}
