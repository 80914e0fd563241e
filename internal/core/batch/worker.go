package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// WorkerRequest asks a worker process to transcribe one segment.
type WorkerRequest struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// WorkerResponse is one line written back by a worker process. The first
// line after start-up is a handshake with Ready set, or Error set if the
// model could not be loaded.
type WorkerResponse struct {
	Index int    `json:"index"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Ready bool   `json:"ready,omitempty"`
}

// ServeWorker is the child side of a ProcessPool. It opens its own model,
// announces itself, then answers one JSON request per line from r until r
// hits EOF. Transcription errors are reported in-band and never end the loop.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, open Opener) error {
	enc := json.NewEncoder(w)

	model, err := open(ctx)
	if err != nil {
		_ = enc.Encode(WorkerResponse{Index: -1, Error: err.Error()})
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer model.Close()

	if err := enc.Encode(WorkerResponse{Index: -1, Ready: true}); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}

	dec := json.NewDecoder(r)
	for {
		var req WorkerRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		resp := WorkerResponse{Index: req.Index}
		res, err := model.Transcribe(ctx, req.Path)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Text = res.Text
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}
