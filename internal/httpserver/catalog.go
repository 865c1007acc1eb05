package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petapt/internal/checkout"
	"petapt/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.Catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// resolveVariant reads the selection from query parameters: ?<optionId>=<valueId>.
func (h *handlers) resolveVariant(c *gin.Context) {
	v, err := h.deps.Catalog.ResolveVariant(c.Request.Context(), c.Param("productId"), selectionFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) availability(c *gin.Context) {
	values, err := h.deps.Catalog.Availability(c.Request.Context(), c.Param("productId"), selectionFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}

func (h *handlers) regenerateVariants(c *gin.Context) {
	if !currentSession(c).Identity.Peek().IsAuthenticated() {
		writeError(c, checkout.ErrNotAuthenticated)
		return
	}
	p, err := h.deps.Catalog.RegenerateVariants(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func selectionFromQuery(c *gin.Context) map[string]string {
	sel := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 && vs[0] != "" {
			sel[k] = vs[0]
		}
	}
	return sel
}
