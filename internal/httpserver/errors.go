package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"petapt/internal/cartsync"
	"petapt/internal/checkout"
	"petapt/internal/domain"
	addresssvc "petapt/internal/service/address"
	customersvc "petapt/internal/service/customer"
	"petapt/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func writeError(c *gin.Context, err error) {
	status, body := mapError(err)
	c.JSON(status, body)
}

func mapError(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}
	var syncErr *cartsync.Error
	if errors.As(err, &syncErr) {
		body.Kind = syncErr.Kind.String()
		switch syncErr.Kind {
		case cartsync.KindConflict:
			return http.StatusConflict, body
		case cartsync.KindTransient:
			body.Error = "cart temporarily unavailable"
			return http.StatusServiceUnavailable, body
		}
	}
	switch {
	case errors.Is(err, session.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody(session.ErrUnavailable.Error())
	case errors.Is(err, cartsync.ErrNoIdentity),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, customersvc.ErrInvalidCredentials),
		errors.Is(err, addresssvc.ErrNotAuthenticated),
		errors.Is(err, checkout.ErrNotAuthenticated):
		return http.StatusUnauthorized, body
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrRevisionConflict),
		errors.Is(err, session.ErrIdentityDowngrade),
		errors.Is(err, checkout.ErrInProgress):
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, addresssvc.ErrInvalidAddress):
		return http.StatusBadRequest, body
	case errors.Is(err, session.ErrUnknownSession):
		return http.StatusUnauthorized, body
	}
	if syncErr != nil && syncErr.Kind == cartsync.KindPrecondition {
		return http.StatusBadRequest, body
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}
