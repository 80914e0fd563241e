package transcriber

import (
	"fmt"
	"strings"
	"time"
)

// parseWhisperOutput parses whisper.cpp text output into segments.
func parseWhisperOutput(text string) []Segment {
	// whisper.cpp txt format: [00:00:00.000 --> 00:00:05.000] Text here
	var segments []Segment
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				parts := strings.Split(line[1:end], " --> ")
				if len(parts) == 2 {
					if body := strings.TrimSpace(line[end+1:]); body != "" {
						segments = append(segments, Segment{
							Start: parseTimestamp(parts[0]),
							End:   parseTimestamp(parts[1]),
							Text:  body,
						})
					}
					continue
				}
			}
		}

		// Continuation of the previous segment, or untimed output.
		if len(segments) == 0 {
			segments = append(segments, Segment{Text: line})
		} else {
			segments[len(segments)-1].Text += " " + line
		}
	}
	return segments
}

// parseTimestamp parses HH:MM:SS.mmm format.
func parseTimestamp(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}

	var hours, minutes int
	var seconds float64
	fmt.Sscanf(parts[0], "%d", &hours)
	fmt.Sscanf(parts[1], "%d", &minutes)
	fmt.Sscanf(parts[2], "%f", &seconds)

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}

// cleanTranscriptText removes timestamp markers and joins the lines.
func cleanTranscriptText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// joinSegments concatenates segment texts with single spaces.
func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
