package audio

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/tetratelabs/wazero"
)

// RunFFmpeg runs the embedded ffmpeg WASM build. The directory of every path
// in files is mounted at the same location inside the sandbox, so paths in
// args must be absolute.
func RunFFmpeg(ctx context.Context, args []string, files ...string) error {
	mounts := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		mounts[filepath.Dir(abs)] = struct{}{}
	}

	var stderr bytes.Buffer
	rc, err := ffmpreg.Ffmpeg(ctx, wasm.Args{
		Stderr: &stderr,
		Stdout: &bytes.Buffer{},
		Args:   args,
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			fs := wazero.NewFSConfig()
			for dir := range mounts {
				fs = fs.WithDirMount(dir, dir)
			}
			return cfg.WithFSConfig(fs)
		},
	})
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if rc != 0 {
		return fmt.Errorf("ffmpeg exited with code %d: %s", rc, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
