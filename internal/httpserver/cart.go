package httpserver

import (
	"errors"
	"log"
	"net/http"

	sessioncart "shopcart/internal/cart"
	"shopcart/internal/domain"
	"shopcart/internal/metrics"
	"shopcart/internal/session"

	"github.com/gin-gonic/gin"
)

type cartHandlers struct {
	svc      cartService
	sessions session.Store
	cookie   CookieConfig
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// cartItemRequest mirrors the add-to-cart form. Quantities are offered 1..20.
type cartItemRequest struct {
	Quantity int  `form:"quantity" json:"quantity" binding:"required,min=1,max=20"`
	Override bool `form:"override" json:"override"`
}

func (h *cartHandlers) detail(c *gin.Context) {
	sess := sessionFrom(c)
	summary, err := h.svc.Detail(c.Request.Context(), sess)
	h.respond(c, sess, summary, err, http.StatusOK)
}

func (h *cartHandlers) add(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be between 1 and 20"})
		return
	}
	sess := sessionFrom(c)
	summary, err := h.svc.Add(c.Request.Context(), sess, c.Param("productID"), req.Quantity, req.Override)
	h.respond(c, sess, summary, err, http.StatusOK)
}

func (h *cartHandlers) update(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be between 1 and 20"})
		return
	}
	sess := sessionFrom(c)
	summary, err := h.svc.Update(c.Request.Context(), sess, c.Param("productID"), req.Quantity)
	h.respond(c, sess, summary, err, http.StatusOK)
}

func (h *cartHandlers) remove(c *gin.Context) {
	sess := sessionFrom(c)
	summary, err := h.svc.Remove(c.Request.Context(), sess, c.Param("productID"))
	h.respond(c, sess, summary, err, http.StatusOK)
}

func (h *cartHandlers) clear(c *gin.Context) {
	sess := sessionFrom(c)
	if err := h.svc.Clear(c.Request.Context(), sess); err != nil {
		writeCartError(c, err)
		return
	}
	if !h.flushSession(c, sess) {
		return
	}
	c.Status(http.StatusNoContent)
}

// respond flushes the session and writes the cart. Failed operations are not
// flushed, so a rejected request leaves the stored cart untouched.
func (h *cartHandlers) respond(c *gin.Context, sess *session.Session, summary sessioncart.Summary, err error, status int) {
	if err != nil {
		writeCartError(c, err)
		return
	}
	if !h.flushSession(c, sess) {
		return
	}
	c.JSON(status, toCartResponse(summary))
}

func writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sessioncart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, sessioncart.ErrCorruptCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "stored cart is unreadable, clear it with DELETE /cart"})
	case errors.Is(err, session.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
