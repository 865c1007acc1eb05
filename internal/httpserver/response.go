package httpserver

import (
	"time"

	"petapt/internal/domain"
)

type identityResponse struct {
	Kind   string `json:"kind"`
	UserID string `json:"userId,omitempty"`
}

func toIdentityResponse(id domain.Identity) identityResponse {
	return identityResponse{Kind: id.Kind.String(), UserID: id.UserID}
}

type sessionResponse struct {
	Token     string           `json:"token,omitempty"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Identity  identityResponse `json:"identity"`
}

type loginResponse struct {
	Identity identityResponse `json:"identity"`
	Customer *domain.Customer `json:"customer"`
}

type cartResponse struct {
	Cart domain.CartSnapshot `json:"cart"`
	// Pending is true when the returned cart includes mutations not yet confirmed by storage.
	Pending bool `json:"pending"`
}

type checkoutResponse struct {
	State  string `json:"state"`
	Result any    `json:"result"`
}
