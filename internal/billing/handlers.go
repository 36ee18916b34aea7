package billing

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/phonebill/internal/common"
)

// DefaultMaxLogBytes caps request bodies when the handler has no explicit limit.
const DefaultMaxLogBytes = 1 << 20

// Handler exposes bill calculation endpoints.
type Handler struct {
	Svc         *Service
	Jobs        *Jobs
	Validate    *validator.Validate
	MaxLogBytes int64
	Currency    string
}

type calculateRequest struct {
	Log string `json:"log" validate:"required"`
}

type billResponse struct {
	Total           string `json:"total"`
	Currency        string `json:"currency,omitempty"`
	Calls           int    `json:"calls"`
	BilledCalls     int    `json:"billedCalls"`
	FreeDestination string `json:"freeDestination"`
	Skipped         int    `json:"skipped"`
}

// Calculate prices the submitted log synchronously.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing service not configured", nil)
		return
	}
	phoneLog, err := h.readLog(w, r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	bill, err := h.Svc.Calculate(r.Context(), phoneLog)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": billResponse{
		Total:           bill.Total.StringFixed(1),
		Currency:        h.Currency,
		Calls:           bill.Calls,
		BilledCalls:     bill.BilledCalls,
		FreeDestination: bill.FreeDestination,
		Skipped:         bill.Skipped,
	}})
}

// SubmitJob queues the log for the worker and returns the job id.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	phoneLog, err := h.readLog(w, r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	job, err := h.Jobs.Submit(r.Context(), phoneLog)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	w.Header().Set("Location", "/api/v1/bills/jobs/"+job.ID)
	common.JSON(w, http.StatusAccepted, map[string]any{"data": job})
}

// JobStatus reports the state of a queued job.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "id is required", nil)
		return
	}
	job, ok, err := h.Jobs.Status(r.Context(), id)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "job not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": job})
}

func (h *Handler) readLog(w http.ResponseWriter, r *http.Request) (string, error) {
	limit := h.MaxLogBytes
	if limit <= 0 {
		limit = DefaultMaxLogBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", common.NewAppError("PAYLOAD_TOO_LARGE", "phone log exceeds size limit", http.StatusRequestEntityTooLarge, err)
		}
		return "", common.NewAppError("BAD_REQUEST", "unable to read body", http.StatusBadRequest, err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return string(body), nil
	}

	var req calculateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
	}
	if err := h.validator().Struct(req); err != nil {
		return "", common.NewAppError("INVALID_INPUT", "log is required", http.StatusUnprocessableEntity, err)
	}
	return req.Log, nil
}

var defaultValidate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) validator() *validator.Validate {
	if h.Validate == nil {
		return defaultValidate
	}
	return h.Validate
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return common.NewAppError("INVALID_INPUT", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrJobsDisabled):
		return common.NewAppError("JOBS_DISABLED", err.Error(), http.StatusServiceUnavailable, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
