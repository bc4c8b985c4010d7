package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

// validateResponse is the body of a finished run, valid or not.
type validateResponse struct {
	validator.Result
	Run core.Run `json:"run"`
}

type resourceList struct {
	Types []resources.Type `json:"types"`
}

type healthResponse struct {
	Status  string             `json:"status"`
	History string             `json:"history"`
	Limiter core.LimiterStatus `json:"limiter"`
}

// handleHealth reports liveness, validation capacity and the history store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		History: "disabled",
		Limiter: s.service.Limiter().Status(),
	}
	status := http.StatusOK
	if s.history != nil {
		resp.History = "ok"
		if err := s.history.Ping(r.Context()); err != nil {
			s.logger.Warn("health: history unavailable", "error", err)
			resp.Status = "degraded"
			resp.History = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, resourceList{Types: s.service.Types()})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.service.Schema(resources.Type(chi.URLParam(r, "type")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// handleValidate validates a CSV upload, a JSON record array or a remote CSV
// named by ?url=. ?headersRow= is a row number, 0 for no header, or "auto".
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	t := resources.Type(chi.URLParam(r, "type"))
	if _, err := s.service.Schema(t); err != nil {
		s.respondError(w, r, err)
		return
	}

	in, err := s.readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer in.close()

	ctx := WithRequestMetadata(r.Context(), r)
	headersRow, err := s.headersRow(ctx, r, t, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, run, err := s.service.Validate(ctx, core.ValidateRequest{
		Type:       t,
		Source:     in.src,
		SourceName: in.name,
		HeadersRow: headersRow,
	})
	if err != nil {
		s.respondRunError(w, r, err, run.ID.String())
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Result: res, Run: run})
}

// handleDetectHeader reports which row of the input holds the header.
func (s *Server) handleDetectHeader(w http.ResponseWriter, r *http.Request) {
	t := resources.Type(chi.URLParam(r, "type"))
	if _, err := s.service.Schema(t); err != nil {
		s.respondError(w, r, err)
		return
	}

	in, err := s.readInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer in.close()

	row, err := s.service.DetectHeaderRow(r.Context(), t, in.src)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"headersRow": row})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, r, invalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.service.History(r.Context(), resources.Type(chi.URLParam(r, "type")), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.Run{}
	}
	writeJSON(w, http.StatusOK, map[string][]core.Run{"runs": runs})
}

// headersRow reads ?headersRow=, defaulting to 1. Keyed records have no
// header row.
func (s *Server) headersRow(ctx context.Context, r *http.Request, t resources.Type, in input) (int, error) {
	if in.keyed {
		return 0, nil
	}
	v := strings.TrimSpace(r.URL.Query().Get("headersRow"))
	switch {
	case v == "":
		return 1, nil
	case strings.EqualFold(v, "auto"):
		return s.service.DetectHeaderRow(ctx, t, in.src)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidInput("headersRow must be an integer or auto")
	}
	return n, nil
}
