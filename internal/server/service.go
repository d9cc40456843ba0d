package server

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"costbreakdown/internal/common"
	"costbreakdown/internal/export"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/ingest"
	"costbreakdown/internal/pipeline"
)

// Server hosts the processing HTTP API. Document processing is serialized:
// one batch runs at a time, matching the strictly sequential pipeline.
type Server struct {
	cfg       *common.Config
	proc      *pipeline.Processor
	batch     *pipeline.Batch
	scanner   *ingest.Scanner
	extractor *extract.Extractor
	exporter  *export.Service
	aiReady   bool
	aiModel   string
	logger    *slog.Logger

	procMu sync.Mutex // serializes processing runs

	mu       sync.RWMutex
	outputs  map[string]string // output id -> file path
	archives map[string]string // batch id -> archive path
}

// New wires the API around an assembled pipeline.
func New(
	cfg *common.Config,
	proc *pipeline.Processor,
	batch *pipeline.Batch,
	scanner *ingest.Scanner,
	extractor *extract.Extractor,
	exporter *export.Service,
	aiReady bool,
	aiModel string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		proc:      proc,
		batch:     batch,
		scanner:   scanner,
		extractor: extractor,
		exporter:  exporter,
		aiReady:   aiReady,
		aiModel:   aiModel,
		logger:    logger,
		outputs:   map[string]string{},
		archives:  map[string]string{},
	}
}

// Routes builds the HTTP routing table.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withRequestID)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/capabilities", s.handleCapabilities).Methods(http.MethodGet)
	r.HandleFunc("/v1/process", s.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/v1/process/manual", s.handleManual).Methods(http.MethodPost)
	r.HandleFunc("/v1/outputs/{id}", s.handleOutput).Methods(http.MethodGet)
	r.HandleFunc("/v1/batches/{id}/archive", s.handleArchive).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// registerOutput files a completed workbook under a fresh download id.
func (s *Server) registerOutput(id, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[id] = path
}

// outputPath resolves a download id to a file that still exists on disk.
// Unknown ids yield ErrNotFound.
func (s *Server) outputPath(id string) (string, error) {
	s.mu.RLock()
	p, ok := s.outputs[id]
	s.mu.RUnlock()
	if !ok {
		return "", common.ErrNotFound
	}
	if _, err := os.Stat(p); err != nil {
		return "", common.WrapError(err, "registered output missing")
	}
	return p, nil
}

func (s *Server) registerArchive(batchID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[batchID] = path
}

func (s *Server) archivePath(batchID string) (string, error) {
	s.mu.RLock()
	p, ok := s.archives[batchID]
	s.mu.RUnlock()
	if !ok {
		return "", common.ErrNotFound
	}
	if _, err := os.Stat(p); err != nil {
		return "", common.WrapError(err, "registered archive missing")
	}
	return p, nil
}
