package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"shopcart/internal/domain"

	"github.com/gin-gonic/gin"
)

type catalogHandlers struct {
	products   productService
	categories categoryService
	logger     *log.Logger
}

type productListResponse struct {
	Category   *categoryResponse  `json:"category,omitempty"`
	Categories []categoryResponse `json:"categories"`
	Products   []productResponse  `json:"products"`
}

func (h *catalogHandlers) listCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.logger.Printf("catalog: list categories error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": toCategoryResponses(categories)})
}

// listProducts returns available products. An unknown category slug is a 404
// rather than an empty list.
func (h *catalogHandlers) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	slug := strings.TrimSpace(c.Query("category"))

	var resp productListResponse
	if slug != "" {
		cat, err := h.categories.GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
				return
			}
			h.logger.Printf("catalog: get category slug=%s error=%v", slug, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		r := toCategoryResponse(*cat)
		resp.Category = &r
	}

	categories, err := h.categories.List(ctx)
	if err != nil {
		h.logger.Printf("catalog: list categories error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	products, err := h.products.List(ctx, slug)
	if err != nil {
		h.logger.Printf("catalog: list products category=%s error=%v", slug, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp.Categories = toCategoryResponses(categories)
	resp.Products = make([]productResponse, 0, len(products))
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *catalogHandlers) getProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Printf("catalog: get product id=%s error=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*p))
}
