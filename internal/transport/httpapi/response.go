package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"salon/backend/internal/service/appointments"
	"salon/backend/internal/store"
)

type ErrCode string

const (
	CodeBadRequest       ErrCode = "BAD_REQUEST"
	CodeValidation       ErrCode = "VALIDATION_FAILED"
	CodeStaffUnavailable ErrCode = "STAFF_UNAVAILABLE"
	CodeAlreadyAttended  ErrCode = "ALREADY_ATTENDED"
	CodeConflict         ErrCode = "CONFLICT"
	CodeNotFound         ErrCode = "NOT_FOUND"
	CodeLocked           ErrCode = "LOCKED"
	CodeEmissionFailed   ErrCode = "EMISSION_FAILED"
	CodeRequestFailed    ErrCode = "REQUEST_FAILED"
)

type ErrorBody struct {
	Code      ErrCode  `json:"code"`
	Message   string   `json:"message"`
	Field     string   `json:"field,omitempty"`
	Available []string `json:"available,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeBadRequest, Message: msg})
}

// serviceError maps service errors onto HTTP statuses.
func serviceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	var (
		vErr *appointments.ValidationError
		aErr *appointments.AvailabilityError
		tErr *appointments.TerminalStateError
		eErr *appointments.EmissionError
	)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, r, http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: vErr.Error(), Field: vErr.Field})
	case errors.As(err, &aErr):
		log.Info("staff not available", slog.Any("err", err))
		writeError(w, r, http.StatusConflict, ErrorBody{Code: CodeStaffUnavailable, Message: aErr.Error(), Available: aErr.Available})
	case errors.As(err, &tErr):
		log.Info("appointment already attended", slog.Int64("appointment_id", tErr.AppointmentID))
		writeError(w, r, http.StatusConflict, ErrorBody{Code: CodeAlreadyAttended, Message: tErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", slog.Any("err", err))
		writeError(w, r, http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: "resource not found"})
	case errors.Is(err, store.ErrConflict):
		log.Info("conflict", slog.Any("err", err))
		writeError(w, r, http.StatusConflict, ErrorBody{Code: CodeConflict, Message: "resource already exists"})
	case errors.Is(err, store.ErrLocked):
		log.Info("locked", slog.Any("err", err))
		writeError(w, r, http.StatusLocked, ErrorBody{Code: CodeLocked, Message: "appointment is being processed by another session"})
	case errors.As(err, &eErr):
		log.Error(msg, slog.Any("err", err))
		writeError(w, r, http.StatusBadGateway, ErrorBody{Code: CodeEmissionFailed, Message: "invoice could not be emitted"})
	case errors.Is(err, context.Canceled):
		log.Info("request canceled")
	default:
		log.Error(msg, slog.Any("err", err))
		writeError(w, r, http.StatusInternalServerError, ErrorBody{Code: CodeRequestFailed, Message: msg})
	}
}
