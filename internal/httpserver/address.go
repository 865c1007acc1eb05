package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petapt/internal/domain"
)

type addressRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"isDefault"`
}

func (h *handlers) listAddresses(c *gin.Context) {
	sess := currentSession(c)
	list, err := h.deps.Addresses.List(c.Request.Context(), sess.Identity.Peek())
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Address{}
	}
	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

func (h *handlers) createAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid address payload"))
		return
	}
	sess := currentSession(c)
	a, err := h.deps.Addresses.Create(c.Request.Context(), sess.Identity.Peek(), domain.Address{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Street:     req.Street,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handlers) setDefaultAddress(c *gin.Context) {
	sess := currentSession(c)
	if err := h.deps.Addresses.SetDefault(c.Request.Context(), sess.Identity.Peek(), c.Param("addressId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
