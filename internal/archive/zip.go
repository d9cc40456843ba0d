package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// BuildZip packages the given files into one ZIP archive held in memory.
// Entries are named by base name, so a download unpacks flat.
func BuildZip(paths []string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		if err := addFile(zw, p); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("archive %s: %w", filepath.Base(p), err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	logger.Info("archive.zip.ok",
		"files", len(paths),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteZip packages the given files into a ZIP archive at destPath.
func WriteZip(destPath string, paths []string, logger *slog.Logger) error {
	b, err := BuildZip(paths, logger)
	if err != nil {
		return err
	}
	if err := os.WriteFile(destPath, b, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
