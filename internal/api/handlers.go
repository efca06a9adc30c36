package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"leadsim/internal/models"
	"leadsim/internal/schedule"
)

// scheduleDateFormat is the wire format for the schedule endpoint's date field.
const scheduleDateFormat = "2006-01-02"

// defaultTranscriptLimit caps the transcripts listing when no limit is given.
const defaultTranscriptLimit = 50

type optionRequest struct {
	Label string `json:"label"`
}

type textRequest struct {
	Text string `json:"text"`
}

type workflowRequest struct {
	Workflow string `json:"workflow"`
	Version  string `json:"version,omitempty"`
}

type versionRequest struct {
	Version string `json:"version"`
}

type scheduleRequest struct {
	Date   string `json:"date"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	AMPM   string `json:"ampm"`
}

type editMessageRequest struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("Server: invalid request body", "path", r.URL.Path, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) selectOptionHandler(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Label == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("label is required"))
		return
	}

	s.engine.SelectOption(req.Label)
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) submitTextHandler(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	s.engine.SubmitText(r.Context(), req.Text)
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) selectWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	version := models.WebformVersion(req.Version)
	if req.Version == "" {
		version = models.WebformVersionA
	}

	if err := s.engine.SelectWorkflow(models.Workflow(req.Workflow), version); err != nil {
		slog.Debug("Server.selectWorkflowHandler: rejected", "workflow", req.Workflow, "version", req.Version, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) selectVersionHandler(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.engine.SelectVersion(models.WebformVersion(req.Version)); err != nil {
		slog.Debug("Server.selectVersionHandler: rejected", "version", req.Version, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) toggleAIHandler(w http.ResponseWriter, r *http.Request) {
	enabled := s.engine.ToggleAI()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"ai_enabled": enabled}))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	date, err := time.ParseInLocation(scheduleDateFormat, req.Date, time.Local)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("date must be in YYYY-MM-DD format"))
		return
	}

	if err := s.engine.ConfirmDateTime(date, req.Hour, req.Minute, req.AMPM); err != nil {
		var vErr *schedule.ValidationError
		if errors.As(err, &vErr) {
			writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(vErr.Msg))
			return
		}
		slog.Error("Server.scheduleHandler: confirm failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) scheduleCancelHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.CancelDateTime()
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) endCallHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.EndCall()
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) editMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req editMessageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.engine.EditMessage(id, req.Text, req.Options); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Messages()))
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Status()))
}

func (s *Server) transcriptsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTranscriptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	transcripts, err := s.st.ListTranscripts(limit)
	if err != nil {
		slog.Error("Server.transcriptsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list transcripts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(transcripts))
}
