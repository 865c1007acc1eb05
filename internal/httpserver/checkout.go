package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"petapt/internal/checkout"
	"petapt/internal/domain"
)

type challengeRequest struct {
	Passed bool `json:"passed"`
}

type placeOrderRequest struct {
	ShippingAddressID string `json:"shippingAddressId"`
	BillingAddressID  string `json:"billingAddressId"`
}

func (h *handlers) setChallenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid challenge payload"))
		return
	}
	currentSession(c).Checkout.SetChallenge(req.Passed)
	c.Status(http.StatusNoContent)
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid order payload"))
		return
	}
	orch := currentSession(c).Checkout
	res := orch.PlaceOrderWithBilling(c.Request.Context(), req.ShippingAddressID, req.BillingAddressID)
	c.JSON(checkoutStatus(res), checkoutResponse{State: orch.State().String(), Result: res})
}

func checkoutStatus(res checkout.Result) int {
	switch res.Outcome {
	case checkout.OutcomeSucceeded:
		return http.StatusCreated
	case checkout.OutcomeRejected:
		switch {
		case errors.Is(res.Err, checkout.ErrNotAuthenticated):
			return http.StatusUnauthorized
		case errors.Is(res.Err, checkout.ErrInProgress):
			return http.StatusConflict
		case errors.Is(res.Err, checkout.ErrPricing):
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (h *handlers) listOrders(c *gin.Context) {
	id := currentSession(c).Identity.Peek()
	if !id.IsAuthenticated() {
		writeError(c, checkout.ErrNotAuthenticated)
		return
	}
	orders, err := h.deps.Orders.ListByOwner(c.Request.Context(), id.OwnerKey())
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	id := currentSession(c).Identity.Peek()
	if !id.IsAuthenticated() {
		writeError(c, checkout.ErrNotAuthenticated)
		return
	}
	o, err := h.deps.Orders.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if o.Owner != id.OwnerKey() {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, o)
}
