package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts external command execution so tests can stub binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)

	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		slog.Error("exec.failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", elapsed,
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
		return outb.Bytes(), errb.Bytes(), err
	}

	slog.Debug("exec.ok",
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", elapsed,
		"stdout_bytes", outb.Len(),
	)
	return outb.Bytes(), errb.Bytes(), nil
}

// lookPath is swapped in tests to fake binary availability.
var lookPath = exec.LookPath

func binaryAvailable(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
