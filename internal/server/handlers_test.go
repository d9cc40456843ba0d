package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"costbreakdown/constants"
	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/export"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/ingest"
	"costbreakdown/internal/pipeline"
	"costbreakdown/internal/populate"
)

type stubStructurer struct {
	items []entity.LineItem
	err   error
	calls int
}

func (s *stubStructurer) StructureText(context.Context, string) ([]entity.LineItem, []byte, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.items, []byte(`[]`), nil
}

func sampleItems() []entity.LineItem {
	return []entity.LineItem{
		{Description: "PERMITS", Amount: decimal.NewFromInt(10000)},
		{Description: "EXCAVATION", Amount: decimal.NewFromFloat(15000.5)},
	}
}

func writeTemplateFile(t *testing.T, path, headerCell string) {
	t.Helper()
	f := excelize.NewFile()
	if headerCell != "" {
		require.NoError(t, f.SetCellValue("Sheet1", headerCell, "Line Item"))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func spreadsheetBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "PERMITS"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 10000))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T, st *stubStructurer, aiReady bool) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := &common.Config{
		Ingest: common.IngestConfig{
			MaxFileSizeMB:     50,
			MaxBatchFiles:     10,
			SanitizeFilenames: true,
		},
		Paths: common.PathsConfig{
			TemplatePath: filepath.Join(dir, "template.xlsx"),
			OutputDir:    filepath.Join(dir, "outputs"),
			TempDir:      filepath.Join(dir, "temp"),
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.OutputDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Paths.TempDir, 0o755))
	writeTemplateFile(t, cfg.Paths.TemplatePath, "A1")

	ext := extract.NewExtractor(extract.Config{}, nil)
	proc := pipeline.NewProcessor(ext, st, populate.NewPopulator(nil), nil)
	batch := pipeline.NewBatch(proc, nil)
	scanner := ingest.NewScanner(ingest.Options{
		MaxFileSizeMB: cfg.Ingest.MaxFileSizeMB,
		MaxBatchFiles: cfg.Ingest.MaxBatchFiles,
	}, nil)

	return New(cfg, proc, batch, scanner, ext, export.NewService(nil), aiReady, "gemini-1.5-flash", nil)
}

type uploadFile struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, files []uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, uf := range files {
		fw, err := w.CreateFormFile("documents", uf.name)
		require.NoError(t, err)
		_, err = fw.Write(uf.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCapabilitiesEndpoint(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, true)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/v1/capabilities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp capabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.AI.Configured)
	assert.Equal(t, "gemini-1.5-flash", resp.AI.Model)
	assert.True(t, resp.Template.Present)
	assert.NotEmpty(t, resp.Extract)
}

func TestManualEntryEndToEnd(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	body := `{"name":"Kitchen Remodel","items":[` +
		`{"description":"PERMITS","amount":10000},` +
		`{"description":"EXCAVATION","amount":15000.5}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/process/manual", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dr docResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dr))

	assert.Equal(t, constants.DocStatusCompleted, dr.Status)
	assert.Equal(t, 2, dr.ItemCount)
	assert.Equal(t, "25000.5", dr.Total.String())
	require.NotEmpty(t, dr.OutputURL)

	dl := do(s, httptest.NewRequest(http.MethodGet, dr.OutputURL, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, xlsxContentType, dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "COMPLETED_Kitchen Remodel_breakdown.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	a2, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "PERMITS", a2)
	b3, err := f.GetCellValue("Sheet1", "B3")
	require.NoError(t, err)
	amt, err := strconv.ParseFloat(b3, 64)
	require.NoError(t, err)
	assert.InDelta(t, 15000.5, amt, 0.001)
}

func TestManualEntryRejectsEmptyItems(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/process/manual", strings.NewReader(`{"name":"x","items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInvalidInput, resp.Error.Code)
}

func TestManualEntryRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/process/manual", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInvalidInput, resp.Error.Code)
}

func TestProcessBatch(t *testing.T) {
	st := &stubStructurer{items: sampleItems()}
	s := newTestServer(t, st, true)

	body, ctype := multipartBody(t, []uploadFile{{name: "bid.xlsx", data: spreadsheetBytes(t)}})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp processResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 1, resp.Stats.Processed)
	assert.Equal(t, 0, resp.Stats.Failed)
	assert.Equal(t, 1, st.calls)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, constants.DocStatusCompleted, resp.Results[0].Status)
	assert.NotEmpty(t, resp.Results[0].OutputURL)
	assert.NotEmpty(t, resp.SummaryURL)
	require.NotEmpty(t, resp.ArchiveURL)

	dl := do(s, httptest.NewRequest(http.MethodGet, resp.ArchiveURL, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "application/zip", dl.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(dl.Body.Bytes()), int64(dl.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.Contains(t, names, "COMPLETED_bid_breakdown.xlsx")
	assert.Contains(t, names, "batch_"+shortID(resp.BatchID)+"_summary.xlsx")
}

func TestProcessSkipsUnsupportedUpload(t *testing.T) {
	st := &stubStructurer{items: sampleItems()}
	s := newTestServer(t, st, true)

	body, ctype := multipartBody(t, []uploadFile{
		{name: "notes.txt", data: []byte("not a document")},
		{name: "bid.xlsx", data: spreadsheetBytes(t)},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp processResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Stats.Scanned)
	assert.Equal(t, 1, resp.Stats.Skipped)
	assert.Equal(t, 1, resp.Stats.Processed)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, constants.DocStatusFailed, resp.Results[0].Status)
	assert.Equal(t, common.CodeUnsupportedType, resp.Results[0].ErrorCode)
	assert.Equal(t, constants.DocStatusCompleted, resp.Results[1].Status)
}

func TestProcessWithoutAIConfigured(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	body, ctype := multipartBody(t, []uploadFile{{name: "bid.xlsx", data: spreadsheetBytes(t)}})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeCapabilityMissing, resp.Error.Code)
}

func TestProcessRequiresDocuments(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, true)

	body, ctype := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/process", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInvalidInput, resp.Error.Code)
}

func TestProcessRejectsOversizedBatch(t *testing.T) {
	s := newTestServer(t, &stubStructurer{items: sampleItems()}, true)

	sheet := spreadsheetBytes(t)
	files := make([]uploadFile, 11)
	for i := range files {
		files[i] = uploadFile{name: "bid" + strconv.Itoa(i) + ".xlsx", data: sheet}
	}
	body, ctype := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/v1/process", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInvalidInput, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "file limit")
}

func TestProcessUsesUploadedTemplate(t *testing.T) {
	st := &stubStructurer{items: sampleItems()}
	s := newTestServer(t, st, true)

	custom := filepath.Join(t.TempDir(), "custom.xlsx")
	writeTemplateFile(t, custom, "C3")
	tplBytes, err := os.ReadFile(custom)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile("documents", "bid.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(spreadsheetBytes(t))
	require.NoError(t, err)
	tw, err := w.CreateFormFile("template", "custom.xlsx")
	require.NoError(t, err)
	_, err = tw.Write(tplBytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/process", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp processResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.NotEmpty(t, resp.Results[0].OutputURL)

	dl := do(s, httptest.NewRequest(http.MethodGet, resp.Results[0].OutputURL, nil))
	require.Equal(t, http.StatusOK, dl.Code)

	f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	// Header found at C3, so descriptions start at C4.
	c4, err := f.GetCellValue("Sheet1", "C4")
	require.NoError(t, err)
	assert.Equal(t, "PERMITS", c4)
}

func TestOutputNotFound(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/v1/outputs/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeNotFound, resp.Error.Code)
}

func TestArchiveNotFound(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/v1/batches/nope/archive", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeNotFound, resp.Error.Code)
}

func TestManualEntryRejectsOverlongName(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	name := "estimate." + strings.Repeat("a", 150)
	body := `{"name":"` + name + `","items":[{"description":"PERMITS","amount":10000}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/process/manual", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInvalidInput, resp.Error.Code)
}

func TestOutputDownloadAfterFileRemoved(t *testing.T) {
	s := newTestServer(t, &stubStructurer{}, false)

	body := `{"name":"gone","items":[{"description":"PERMITS","amount":10000}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/process/manual", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dr docResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dr))
	require.NoError(t, os.Remove(dr.OutputPath))

	dl := do(s, httptest.NewRequest(http.MethodGet, dr.OutputURL, nil))
	require.Equal(t, http.StatusInternalServerError, dl.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(dl.Body.Bytes(), &resp))
	assert.Equal(t, common.CodeInternal, resp.Error.Code)
}
