package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gw-transfer-batch/internal/api/middlew"
	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/service"
	"gw-transfer-batch/pkg/response"

	"github.com/go-chi/chi/v5"
)

type RunHandler struct {
	runner service.Runner
}

func NewRunHandler(runner service.Runner) *RunHandler {
	return &RunHandler{
		runner: runner,
	}
}

// StartRun godoc
// @Summary      Run the transfer batch
// @Description  Runs the pipeline synchronously and returns its report. The body is optional; missing paths use the configured defaults. Paths are resolved inside the data directory.
// @Tags         runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body service.RunRequest false "Input and summary paths"
// @Success      200 {object} models.RunReport
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} handlers.failedRunResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      422 {object} handlers.failedRunResponse
// @Failure      500 {object} handlers.failedRunResponse
// @Router       /api/v1/runs [post]
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	const op = "handler.StartRun"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req service.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	req.InputPath = strings.TrimSpace(req.InputPath)
	req.SummaryPath = strings.TrimSpace(req.SummaryPath)

	log.Info("batch run requested",
		slog.String("op", op),
		slog.String("operator", middlew.GetOperator(r.Context())),
		slog.String("input", req.InputPath))

	report, err := h.runner.Run(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrRunInProgress):
			log.Info("batch run already in progress", slog.String("op", op))
			response.WriteJSONError(w, log, http.StatusConflict, "run_in_progress", "A batch run is already in progress")
		case errors.Is(err, custom_err.ErrPathOutsideData):
			log.Warn("path outside data directory", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_path", "Paths must stay inside the data directory")
		case errors.Is(err, custom_err.ErrInputNotFound):
			log.Info("input file not found", slog.String("op", op), slog.String("error", err.Error()))
			writeFailedRun(w, log, http.StatusNotFound, "input_not_found", "Input file not found", report)
		case errors.Is(err, custom_err.ErrInputUnreadable):
			log.Warn("input file unreadable", slog.String("op", op), slog.String("error", err.Error()))
			writeFailedRun(w, log, http.StatusUnprocessableEntity, "input_unreadable", "Input file could not be read", report)
		default:
			log.Error("batch run failed", slog.String("op", op), slog.String("error", err.Error()))
			writeFailedRun(w, log, http.StatusInternalServerError, "run_failed", "Batch run failed", report)
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, report)
}

// GetRun godoc
// @Summary      Get a batch run
// @Description  Returns the journaled report of one run
// @Tags         runs
// @Security     BearerAuth
// @Produce      json
// @Param        runID path string true "Run ID"
// @Success      200 {object} models.RunReport
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/runs/{runID} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetRun"
	log := middlew.GetLogger(r.Context())

	runID := chi.URLParam(r, "runID")
	if strings.TrimSpace(runID) == "" {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_request", "runID is required")
		return
	}

	report, err := h.runner.GetRun(r.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrNotFound):
			log.Info("run not found", slog.String("op", op), slog.String("run_id", runID))
			response.WriteJSONError(w, log, http.StatusNotFound, "not_found", "Run not found")
		default:
			log.Error("failed to get run", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusInternalServerError, "internal_error", "Failed to retrieve run")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, report)
}

// Health godoc
// @Summary      Liveness check
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func Health(w http.ResponseWriter, r *http.Request) {
	response.WriteJSONSuccess(w, middlew.GetLogger(r.Context()), http.StatusOK, map[string]string{"status": "ok"})
}

type failedRunResponse struct {
	response.ErrorResponse
	Run *models.RunReport `json:"run,omitempty"`
}

func writeFailedRun(w http.ResponseWriter, log *slog.Logger, status int, errCode, message string, report *models.RunReport) {
	if report == nil {
		response.WriteJSONError(w, log, status, errCode, message)
		return
	}
	response.WriteJSONSuccess(w, log, status, failedRunResponse{
		ErrorResponse: response.ErrorResponse{Error: errCode, Message: message},
		Run:           report,
	})
}
