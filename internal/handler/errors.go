package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/ai"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type base struct {
	logger *zap.Logger
}

func (h base) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	if status, ok := ai.IsUpstream(err); ok {
		h.logger.Warn("upstream failure", zap.Int("status", status), zap.Error(err))
		respond.Error(w, r, status, "upstream AI service error")
		return
	}

	switch {
	case errors.Is(err, respond.ErrEmptyBody):
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
	case errors.Is(err, model.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, model.ErrParse):
		h.logger.Warn("unparseable AI output", zap.Error(err))
		respond.Error(w, r, http.StatusBadGateway, "AI response could not be parsed")
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(w, r, http.StatusGatewayTimeout, "upstream timeout")
	case errors.Is(err, model.ErrTransport):
		h.logger.Warn("transport failure", zap.Error(err))
		respond.Error(w, r, http.StatusBadGateway, "upstream unavailable")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h base) badJSON(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, respond.ErrEmptyBody) || errors.Is(err, model.ErrValidation) {
		h.handleErrors(w, r, err)
		return
	}
	h.logger.Debug("failed to decode json", zap.Error(err))
	respond.Error(w, r, http.StatusBadRequest, err.Error())
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrValidation}, args...)...)
}
