package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costbreakdown/constants"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/populate"
)

// pathSensitiveExtractor fails for paths containing "bad".
type pathSensitiveExtractor struct {
	order []string
}

func (s *pathSensitiveExtractor) Extract(_ context.Context, path string) (extract.Result, error) {
	s.order = append(s.order, filepath.Base(path))
	if strings.Contains(path, "bad") {
		return extract.Result{}, errors.New("unreadable document")
	}
	return extract.Result{Text: "PERMITS 10000", Method: "pdf-text"}, nil
}

func TestBatchRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	ext := &pathSensitiveExtractor{}
	st := &stubStructurer{items: sampleItems()}
	batch := NewBatch(NewProcessor(ext, st, populate.NewPopulator(nil), nil), nil)

	docs := []string{
		filepath.Join(dir, "first.pdf"),
		filepath.Join(dir, "bad.pdf"),
		filepath.Join(dir, "third.pdf"),
	}
	report := batch.Run(context.Background(), docs, tpl, outDir)

	assert.NotEmpty(t, report.ID)
	require.Len(t, report.Results, 3)

	// strictly sequential, in input order
	assert.Equal(t, []string{"first.pdf", "bad.pdf", "third.pdf"}, ext.order)

	assert.Equal(t, constants.DocStatusCompleted, report.Results[0].Status)
	assert.Equal(t, constants.DocStatusFailed, report.Results[1].Status)
	assert.Equal(t, constants.DocStatusCompleted, report.Results[2].Status)

	assert.Equal(t, 2, report.Stats.Processed)
	assert.Equal(t, 1, report.Stats.Failed)

	require.Len(t, report.Outputs, 2)
	assert.Equal(t, "COMPLETED_first_breakdown.xlsx", filepath.Base(report.Outputs[0]))
	assert.Equal(t, "COMPLETED_third_breakdown.xlsx", filepath.Base(report.Outputs[1]))

	for _, out := range report.Outputs {
		_, err := os.Stat(out)
		assert.NoError(t, err)
	}
}

func TestBatchRunEmpty(t *testing.T) {
	batch := NewBatch(NewProcessor(&stubExtractor{}, &stubStructurer{}, populate.NewPopulator(nil), nil), nil)
	report := batch.Run(context.Background(), nil, "tpl.xlsx", t.TempDir())

	assert.NotEmpty(t, report.ID)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Stats.Processed)
	assert.Zero(t, report.Stats.Failed)
}
