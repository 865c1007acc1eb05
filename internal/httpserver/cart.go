package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petapt/internal/cartsync"
)

type addLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) getCart(c *gin.Context) {
	sess := currentSession(c)
	ctx := c.Request.Context()
	if _, err := sess.Identity.Current(ctx); err != nil {
		writeError(c, err)
		return
	}
	snap, err := sess.Cart.Load(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Cart: snap})
}

func (h *handlers) addLine(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("productId is required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	h.mutate(c, func(sess *cartsync.Synchronizer) (*cartsync.Pending, error) {
		return sess.Add(c.Request.Context(), req.ProductID, req.VariantID, req.Quantity)
	})
}

func (h *handlers) updateLine(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("quantity is required"))
		return
	}
	lineID := c.Param("lineId")
	h.mutate(c, func(sess *cartsync.Synchronizer) (*cartsync.Pending, error) {
		return sess.Update(c.Request.Context(), lineID, req.Quantity)
	})
}

func (h *handlers) removeLine(c *gin.Context) {
	lineID := c.Param("lineId")
	h.mutate(c, func(sess *cartsync.Synchronizer) (*cartsync.Pending, error) {
		return sess.Remove(c.Request.Context(), lineID)
	})
}

func (h *handlers) clearCart(c *gin.Context) {
	h.mutate(c, func(sess *cartsync.Synchronizer) (*cartsync.Pending, error) {
		return sess.Clear(c.Request.Context())
	})
}

// mutate applies op optimistically and answers 202 with the optimistic cart, or with
// ?wait=true blocks until the mutation is reconciled and answers 200.
func (h *handlers) mutate(c *gin.Context, op func(*cartsync.Synchronizer) (*cartsync.Pending, error)) {
	sess := currentSession(c)
	ctx := c.Request.Context()
	if _, err := sess.Identity.Current(ctx); err != nil {
		writeError(c, err)
		return
	}
	pending, err := op(sess.Cart)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, cartResponse{Cart: sess.Cart.Snapshot(), Pending: true})
		return
	}
	if err := pending.Wait(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Cart: sess.Cart.Snapshot()})
}
