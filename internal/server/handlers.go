package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/query"
)

// maxBodyBytes caps a query request body.
const maxBodyBytes = 1 << 20

// datasetSummary is one entry of GET /api/datasets.
type datasetSummary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PathPrefix  string `json:"path_prefix"`
	Version     int    `json:"version"`
	Adapter     string `json:"adapter"`
}

// validateResponse is the body of a validate call.
type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors []core.FieldError `json:"errors"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"datasets": len(s.catalog.List()),
	})
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := s.catalog.List()
	out := make([]datasetSummary, 0, len(datasets))
	for _, d := range datasets {
		reg := d.Registry()
		out = append(out, datasetSummary{
			Key:         d.Key,
			Name:        reg.Name,
			Description: reg.Description,
			PathPrefix:  reg.PathPrefix,
			Version:     reg.Version,
			Adapter:     d.AdapterType(),
		})
	}
	s.respond(w, r, http.StatusOK, out)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	prefix, version, req, err := s.decode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rs, err := s.catalog.Query(r.Context(), prefix, version, req)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, rs)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	prefix, version, req, err := s.decode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.catalog.Validate(prefix, version, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	errs := res.Errors
	if errs == nil {
		errs = []core.FieldError{}
	}
	s.respond(w, r, http.StatusOK, validateResponse{Valid: res.OK(), Errors: errs})
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	prefix, version, req, err := s.decode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.catalog.Explain(prefix, version, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, plan)
}

func (s *Server) filterOptions(w http.ResponseWriter, r *http.Request) {
	prefix, version, err := datasetParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := s.catalog.FilterOptions(r.Context(), prefix, version)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, r, err)
		return
	}
	if opts == nil {
		opts = []core.FilterOption{}
	}
	s.respond(w, r, http.StatusOK, opts)
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) {
	prefix, version, err := datasetParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.catalog.Get(prefix, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, d.Registry().Describe())
}

// decode reads the dataset address from the path and the request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (string, int, *query.Request, error) {
	prefix, version, err := datasetParams(r)
	if err != nil {
		return "", 0, nil, err
	}
	req, err := query.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", 0, nil, &malformedError{err}
	}
	return prefix, version, req, nil
}

// datasetParams parses the {prefix} and v{version} path segments.
func datasetParams(r *http.Request) (string, int, error) {
	prefix := chi.URLParam(r, "prefix")
	raw := chi.URLParam(r, "version")
	digits, ok := strings.CutPrefix(raw, "v")
	if !ok {
		return "", 0, notFound("dataset version %q must look like v1", raw)
	}
	version, err := strconv.Atoi(digits)
	if err != nil || version < 1 {
		return "", 0, notFound("dataset version %q must look like v1", raw)
	}
	return prefix, version, nil
}

// logFailure records execution failures that are not caller mistakes.
func (s *Server) logFailure(r *http.Request, err error) {
	status, _ := statusFor(err)
	if status < http.StatusInternalServerError {
		return
	}
	attrs := []any{
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	}
	var adapterErr *core.AdapterError
	if errors.As(err, &adapterErr) {
		attrs = append(attrs, slog.Bool("retryable", adapterErr.Retryable()))
	}
	s.logger.Error("request failed", attrs...)
}
