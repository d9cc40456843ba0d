package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"costbreakdown/constants"
	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/populate"
)

type stubExtractor struct {
	res   extract.Result
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (extract.Result, error) {
	s.calls++
	return s.res, s.err
}

type stubStructurer struct {
	items []entity.LineItem
	raw   []byte
	err   error
	calls int
}

func (s *stubStructurer) StructureText(_ context.Context, _ string) ([]entity.LineItem, []byte, error) {
	s.calls++
	return s.items, s.raw, s.err
}

func sampleItems() []entity.LineItem {
	return []entity.LineItem{
		{Description: "PERMITS", Amount: decimal.NewFromInt(10000)},
		{Description: "EXCAVATION", Amount: decimal.NewFromInt(15000)},
	}
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "template.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Line Item"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Amount"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func newTestProcessor(ext *stubExtractor, st *stubStructurer) *Processor {
	return NewProcessor(ext, st, populate.NewPopulator(nil), nil)
}

func TestProcessDocumentHappyPath(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	ext := &stubExtractor{res: extract.Result{Text: "PERMITS 10,000\nEXCAVATION 15,000", Method: "pdf-text", Pages: 1}}
	st := &stubStructurer{items: sampleItems()}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/estimate.pdf", tpl, outDir)
	require.NoError(t, err)

	assert.Equal(t, constants.DocStatusCompleted, res.Status)
	assert.Equal(t, 2, res.ItemCount)
	assert.True(t, res.Total.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, filepath.Join(outDir, "COMPLETED_estimate_breakdown.xlsx"), res.OutputPath)

	f, err := excelize.OpenFile(res.OutputPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "PERMITS", v)
}

func TestProcessDocumentUnsupportedType(t *testing.T) {
	ext := &stubExtractor{}
	st := &stubStructurer{}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/notes.docx", "tpl.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, constants.DocStatusFailed, res.Status)
	assert.Equal(t, common.CodeUnsupportedType, res.ErrorCode)
	assert.Zero(t, ext.calls)
	assert.Zero(t, st.calls)
}

func TestProcessDocumentExtractFailure(t *testing.T) {
	ext := &stubExtractor{err: errors.New("pdftotext: exit status 1")}
	st := &stubStructurer{}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/bad.pdf", "tpl.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractFailed, res.ErrorCode)
	assert.Zero(t, st.calls)
}

func TestProcessDocumentEmptyTextFails(t *testing.T) {
	ext := &stubExtractor{res: extract.Result{Text: "   \n", Method: "image-ocr"}}
	st := &stubStructurer{}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/blank.png", "tpl.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractFailed, res.ErrorCode)
	assert.Contains(t, res.Error, "no text found")
	assert.Zero(t, st.calls)
}

func TestProcessDocumentStructuringFailure(t *testing.T) {
	ext := &stubExtractor{res: extract.Result{Text: "some text", Method: "pdf-text"}}
	st := &stubStructurer{err: errors.New("gemini request: non-2xx status: 429")}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/estimate.pdf", "tpl.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, common.CodeAIResponseMalformed, res.ErrorCode)
}

func TestProcessDocumentNoItemsRecognized(t *testing.T) {
	ext := &stubExtractor{res: extract.Result{Text: "lorem ipsum", Method: "pdf-text"}}
	st := &stubStructurer{items: nil}
	p := newTestProcessor(ext, st)

	res, err := p.ProcessDocument(context.Background(), "/in/essay.pdf", "tpl.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, common.CodeAIResponseMalformed, res.ErrorCode)
	assert.Contains(t, res.Error, "manually")
}

func TestProcessDocumentPopulateFailure(t *testing.T) {
	dir := t.TempDir()
	ext := &stubExtractor{res: extract.Result{Text: "PERMITS 10000", Method: "pdf-text"}}
	st := &stubStructurer{items: sampleItems()}
	p := newTestProcessor(ext, st)

	// missing template makes stage 3 fail
	res, err := p.ProcessDocument(context.Background(), "/in/estimate.pdf", filepath.Join(dir, "missing.xlsx"), dir)
	require.Error(t, err)
	assert.Equal(t, constants.DocStatusFailed, res.Status)
	assert.Equal(t, common.CodeTemplateWriteFailed, res.ErrorCode)
	assert.Empty(t, res.OutputPath)
}

func TestProcessManual(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)

	p := newTestProcessor(&stubExtractor{}, &stubStructurer{})
	res, err := p.ProcessManual(context.Background(), "kitchen-remodel", sampleItems(), tpl, dir)
	require.NoError(t, err)

	assert.Equal(t, constants.DocStatusCompleted, res.Status)
	assert.Equal(t, filepath.Join(dir, "COMPLETED_kitchen-remodel_breakdown.xlsx"), res.OutputPath)
	_, statErr := os.Stat(res.OutputPath)
	assert.NoError(t, statErr)
}

func TestProcessManualRejectsInvalidItems(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	p := newTestProcessor(&stubExtractor{}, &stubStructurer{})

	bad := []entity.LineItem{{Description: "", Amount: decimal.NewFromInt(5)}}
	res, err := p.ProcessManual(context.Background(), "job", bad, tpl, dir)
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidInput, res.ErrorCode)

	_, err = p.ProcessManual(context.Background(), "job", nil, tpl, dir)
	require.Error(t, err)
}
