package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"costbreakdown/constants"
	"costbreakdown/internal/archive"
	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/extract"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// docResponse decorates a document result with download coordinates for the
// populated workbook, when one was produced.
type docResponse struct {
	entity.DocumentResult
	OutputID  string `json:"output_id,omitempty"`
	OutputURL string `json:"output_url,omitempty"`
}

type processResponse struct {
	BatchID    string            `json:"batch_id"`
	Stats      entity.BatchStats `json:"stats"`
	Results    []docResponse     `json:"results"`
	SummaryID  string            `json:"summary_output_id,omitempty"`
	SummaryURL string            `json:"summary_output_url,omitempty"`
	ArchiveURL string            `json:"archive_url,omitempty"`
}

type manualRequest struct {
	Name  string            `json:"name"`
	Items []entity.LineItem `json:"items"`
}

type capabilitiesResponse struct {
	Extract  []extract.Capability `json:"extract"`
	AI       aiCapability         `json:"ai"`
	Template templateCapability   `json:"template"`
}

type aiCapability struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model"`
}

type templateCapability struct {
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("http.response.encode_error", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	_, statErr := os.Stat(s.cfg.Paths.TemplatePath)
	s.writeJSON(w, http.StatusOK, capabilitiesResponse{
		Extract: s.extractor.Capabilities(),
		AI: aiCapability{
			Configured: s.aiReady,
			Model:      s.aiModel,
		},
		Template: templateCapability{
			Path:    s.cfg.Paths.TemplatePath,
			Present: statErr == nil,
		},
	})
}

// handleProcess accepts a multipart upload of source documents (field
// "documents", optional field "template"), runs the batch and responds with
// per-document results plus download URLs for workbooks, the batch summary
// and the zip archive. Batches run one at a time.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if !s.aiReady {
		s.writeError(w, http.StatusServiceUnavailable, common.CodeCapabilityMissing,
			"AI structuring is not configured; set GEMINI_API_KEY or use /v1/process/manual")
		return
	}

	perFile := int64(s.cfg.Ingest.MaxFileSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, perFile*int64(s.cfg.Ingest.MaxBatchFiles+1))
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput, "parse multipart form: "+err.Error())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("http.multipart.cleanup_error", "error", err)
		}
	}()

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput,
			"no documents uploaded; use multipart field \"documents\"")
		return
	}
	if limit := s.scanner.MaxBatchFiles(); len(files) > limit {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput,
			fmt.Sprintf("batch of %d exceeds the %d file limit", len(files), limit))
		return
	}

	tempDir, err := os.MkdirTemp(s.cfg.Paths.TempDir, "batch-*")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, common.CodeInternal, "create work dir: "+err.Error())
		return
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			s.logger.Warn("http.workdir.cleanup_error", "dir", tempDir, "error", err)
		}
	}()

	templatePath, err := s.resolveTemplate(r, tempDir)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput, err.Error())
		return
	}

	var skipped []entity.DocumentResult
	var docPaths []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if s.cfg.Ingest.SanitizeFilenames {
			name = common.SanitizeFilename(fh.Filename)
		}
		if err := s.scanner.CheckFile(name, fh.Size); err != nil {
			skipped = append(skipped, entity.DocumentResult{
				DocID:      uuid.New().String(),
				SourcePath: fh.Filename,
				Status:     constants.DocStatusFailed,
				ErrorCode:  common.CodeOf(err),
				Error:      err.Error(),
			})
			continue
		}
		dst := filepath.Join(tempDir, name)
		if err := saveUpload(fh, dst); err != nil {
			s.writeError(w, http.StatusInternalServerError, common.CodeInternal, "save upload: "+err.Error())
			return
		}
		docPaths = append(docPaths, dst)
	}

	report := s.batch.Run(r.Context(), docPaths, templatePath, s.cfg.Paths.OutputDir)
	report.Results = append(skipped, report.Results...)
	report.Stats.Scanned = len(files)
	report.Stats.Matched = len(docPaths)
	report.Stats.Skipped = len(skipped)

	resp := processResponse{BatchID: report.ID, Stats: report.Stats, Results: make([]docResponse, 0, len(report.Results))}
	for _, res := range report.Results {
		dr := docResponse{DocumentResult: res}
		if res.OutputPath != "" {
			id := uuid.New().String()
			s.registerOutput(id, res.OutputPath)
			dr.OutputID = id
			dr.OutputURL = "/v1/outputs/" + id
		}
		resp.Results = append(resp.Results, dr)
	}

	if sumPath, id, err := s.writeBatchSummary(report.ID, report.Results); err != nil {
		s.logger.Error("http.batch.summary_error", "batch_id", report.ID, "error", err)
	} else {
		resp.SummaryID = id
		resp.SummaryURL = "/v1/outputs/" + id
		report.Outputs = append(report.Outputs, sumPath)
	}

	if len(report.Outputs) > 0 {
		zipPath := filepath.Join(s.cfg.Paths.OutputDir, fmt.Sprintf("batch_%s.zip", shortID(report.ID)))
		if err := archive.WriteZip(zipPath, report.Outputs, s.logger); err != nil {
			s.logger.Error("http.batch.archive_error", "batch_id", report.ID, "error", err)
		} else {
			s.registerArchive(report.ID, zipPath)
			resp.ArchiveURL = "/v1/batches/" + report.ID + "/archive"
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleManual populates the template from items typed by a person, with no
// extraction or AI involved.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	var req manualRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput, "decode request: "+err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "manual-entry"
	}
	name = common.SanitizeFilename(name)

	v := common.NewValidator()
	v.Field("name", name, common.Required, common.MaxLen(120))
	if v.HasErrors() {
		s.writeError(w, http.StatusBadRequest, common.CodeInvalidInput, v.Error().Error())
		return
	}

	res, err := s.proc.ProcessManual(r.Context(), name, req.Items, s.cfg.Paths.TemplatePath, s.cfg.Paths.OutputDir)
	if err != nil {
		status := http.StatusBadRequest
		if common.CodeOf(err) == common.CodeTemplateWriteFailed {
			status = http.StatusInternalServerError
		}
		s.writeError(w, status, res.ErrorCode, res.Error)
		return
	}

	dr := docResponse{DocumentResult: res}
	id := uuid.New().String()
	s.registerOutput(id, res.OutputPath)
	dr.OutputID = id
	dr.OutputURL = "/v1/outputs/" + id
	s.writeJSON(w, http.StatusOK, dr)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, err := s.outputPath(id)
	if errors.Is(err, common.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, common.CodeNotFound, "unknown output id")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, err := s.archivePath(id)
	if errors.Is(err, common.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, common.CodeNotFound, "unknown batch id or no archive was built")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// resolveTemplate prefers a template uploaded with the batch and falls back
// to the configured default.
func (s *Server) resolveTemplate(r *http.Request, tempDir string) (string, error) {
	if tpl, header, err := r.FormFile("template"); err == nil {
		_ = tpl.Close()
		dst := filepath.Join(tempDir, common.SanitizeFilename(header.Filename))
		if err := saveUpload(header, dst); err != nil {
			return "", common.WrapError(err, "save template upload")
		}
		return dst, nil
	}
	if s.cfg.Paths.TemplatePath == "" {
		return "", errors.New("no template uploaded and no default template configured")
	}
	if _, err := os.Stat(s.cfg.Paths.TemplatePath); err != nil {
		return "", fmt.Errorf("default template not available: %w", err)
	}
	return s.cfg.Paths.TemplatePath, nil
}

func (s *Server) writeBatchSummary(batchID string, results []entity.DocumentResult) (string, string, error) {
	data, err := s.exporter.BatchSummaryXLSX(results)
	if err != nil {
		return "", "", err
	}
	path := filepath.Join(s.cfg.Paths.OutputDir, fmt.Sprintf("batch_%s_summary.xlsx", shortID(batchID)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", common.WrapError(err, "write summary workbook")
	}
	id := uuid.New().String()
	s.registerOutput(id, path)
	return path, id, nil
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
