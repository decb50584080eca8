package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/shopworks/storefront-api/internal/dto"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/service"
)

// CatalogHandler serves product browsing. The paged shelves keep one pager
// per user and shelf so that repeated requests walk the growing-limit pages
// in order; passing reset=true starts a shelf over from the first page.
type CatalogHandler struct {
	catalog *service.Catalog

	mu     sync.Mutex
	pagers map[string]*service.BestProductsPager
}

func NewCatalogHandler(catalog *service.Catalog) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		pagers:  make(map[string]*service.BestProductsPager),
	}
}

func (h *CatalogHandler) SpecialProducts(c *gin.Context) {
	products, err := h.catalog.SpecialProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Products: products})
}

func (h *CatalogHandler) BestDeals(c *gin.Context) {
	products, err := h.catalog.BestDeals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Products: products})
}

func (h *CatalogHandler) OfferProducts(c *gin.Context) {
	products, err := h.catalog.OfferProducts(c.Request.Context(), c.Param("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Products: products})
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// BestProducts pages the home shelf for the requesting user.
func (h *CatalogHandler) BestProducts(c *gin.Context) {
	pager := h.pagerFor(c, "home", h.catalog.NewHomePager)
	h.servePage(c, pager)
}

// CategoryProducts pages a category's non-offer products.
func (h *CatalogHandler) CategoryProducts(c *gin.Context) {
	category := c.Param("category")
	pager := h.pagerFor(c, "category:"+category, func() *service.BestProductsPager {
		return h.catalog.NewCategoryPager(category)
	})
	h.servePage(c, pager)
}

func (h *CatalogHandler) servePage(c *gin.Context, pager *service.BestProductsPager) {
	products, err := pager.Next(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Products: products, PagingEnd: pager.Ended()})
}

func (h *CatalogHandler) pagerFor(c *gin.Context, shelf string, create func() *service.BestProductsPager) *service.BestProductsPager {
	key := middleware.GetUser(c).UserID + "|" + shelf

	h.mu.Lock()
	defer h.mu.Unlock()
	pager, ok := h.pagers[key]
	if !ok {
		pager = create()
		h.pagers[key] = pager
	} else if c.Query("reset") == "true" {
		pager.Reset()
	}
	return pager
}
