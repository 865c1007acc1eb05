package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) createSession(c *gin.Context) {
	sess, err := h.deps.Sessions.Create(c.Request.Context())
	if sess == nil {
		writeError(c, err)
		return
	}
	if err != nil {
		// Identity provisioning is retried on the next request of this session.
		h.logger.Printf("http: create session=%s provisioning deferred err=%v", sess.ID, err)
	}
	token, exp, err := h.deps.Tokens.Issue(sess.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Token: token, ExpiresAt: &exp, Identity: toIdentityResponse(sess.Identity.Peek())})
}

func (h *handlers) getSession(c *gin.Context) {
	sess := currentSession(c)
	id, err := sess.Identity.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Identity: toIdentityResponse(id)})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("email and password are required"))
		return
	}
	ctx := c.Request.Context()
	customer, err := h.deps.Customers.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	sess := currentSession(c)
	if err := sess.Identity.Authenticate(ctx, customer.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Identity: toIdentityResponse(sess.Identity.Peek()), Customer: customer})
}
