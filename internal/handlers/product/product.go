// Package product exposes the public catalog reads backing the
// storefront.
package product

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"farmstore_back_end/internal/models"
)

type ProductStore interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
}

type Handler struct {
	Products ProductStore
}

func (h *Handler) List(c *gin.Context) {
	products, err := h.Products.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetByID(c *gin.Context) {
	product, err := h.Products.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}
