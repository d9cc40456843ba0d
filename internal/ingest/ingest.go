package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"costbreakdown/constants"
	"costbreakdown/internal/common"
)

// Decision records why one scanned file was accepted or skipped.
type Decision struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"` // "extension" | "size" | "batch-cap"
}

// Stats summarizes a directory scan.
type Stats struct {
	Scanned     int
	Matched     int
	SkippedExt  int
	SkippedSize int
	Capped      int
}

// Skipped is the total number of files the scan rejected.
func (s Stats) Skipped() int {
	return s.SkippedExt + s.SkippedSize + s.Capped
}

// Options bounds what a scan will accept.
type Options struct {
	MaxFileSizeMB int
	MaxBatchFiles int
}

// Scanner applies the acceptance gates to candidate input documents.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// NewScanner builds a scanner, applying defaults for unset options.
func NewScanner(opts Options, logger *slog.Logger) *Scanner {
	if opts.MaxFileSizeMB <= 0 {
		opts.MaxFileSizeMB = 50
	}
	if opts.MaxBatchFiles <= 0 {
		opts.MaxBatchFiles = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{opts: opts, logger: logger}
}

// ScanDir walks root for processable documents, skipping hidden entries.
// Files beyond the batch cap are recorded but not accepted; the walk itself
// keeps going so the decisions list is complete.
func (s *Scanner) ScanDir(root string) ([]string, []Decision, Stats, error) {
	var accepted []string
	var decisions []Decision
	var st Stats
	maxBytes := s.maxBytes()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if isHidden(d.Name()) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) {
			return nil
		}

		st.Scanned++
		if !constants.IsAllowedExtension(filepath.Ext(path)) {
			st.SkippedExt++
			decisions = append(decisions, Decision{Path: path, Reason: "extension"})
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		if info.Size() > maxBytes {
			st.SkippedSize++
			decisions = append(decisions, Decision{Path: path, Size: info.Size(), Reason: "size"})
			return nil
		}
		if len(accepted) >= s.opts.MaxBatchFiles {
			st.Capped++
			decisions = append(decisions, Decision{Path: path, Size: info.Size(), Reason: "batch-cap"})
			return nil
		}

		st.Matched++
		accepted = append(accepted, path)
		decisions = append(decisions, Decision{Path: path, Size: info.Size(), Accepted: true})
		return nil
	})
	if err != nil {
		return nil, nil, st, fmt.Errorf("scan %s: %w", root, err)
	}

	s.logger.Info("ingest.scan.ok",
		"root", root,
		"scanned", st.Scanned,
		"matched", st.Matched,
		"skipped_ext", st.SkippedExt,
		"skipped_size", st.SkippedSize,
		"capped", st.Capped,
	)
	return accepted, decisions, st, nil
}

// CheckFile applies the extension and size gates to one explicit candidate,
// as the upload handler sees them before anything touches disk.
func (s *Scanner) CheckFile(name string, size int64) error {
	if !constants.IsAllowedExtension(filepath.Ext(name)) {
		return common.NewAppError(common.CodeUnsupportedType,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(name)), nil)
	}
	if size > s.maxBytes() {
		return common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("file exceeds %d MB limit", s.opts.MaxFileSizeMB), nil)
	}
	return nil
}

// MaxBatchFiles exposes the configured batch cap.
func (s *Scanner) MaxBatchFiles() int {
	return s.opts.MaxBatchFiles
}

func (s *Scanner) maxBytes() int64 {
	return int64(s.opts.MaxFileSizeMB) << 20
}
