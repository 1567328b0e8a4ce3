package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/service"
)

// maxUploadBytes caps uploaded image size at 15 MB.
const maxUploadBytes = 15 << 20

// ItemHandler handles wishlist item endpoints.
type ItemHandler struct {
	ingest *service.IngestService
	items  *repository.ItemRepository
}

// NewItemHandler creates a new item handler.
func NewItemHandler(ingest *service.IngestService, items *repository.ItemRepository) *ItemHandler {
	return &ItemHandler{
		ingest: ingest,
		items:  items,
	}
}

// actingUser reads the authenticated user's ID. Authentication itself lives
// upstream (gateway); this service only needs the identity for quota and
// ownership checks.
func actingUser(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

// CreateFromImage handles POST /api/v1/wishlists/:id/items/image.
// Accepts a multipart upload; responds 202 with the PENDING item. Enrichment
// results are observed by re-reading the item.
func (h *ItemHandler) CreateFromImage(c *gin.Context) {
	userID := actingUser(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}
	wishlistID := c.Param("id")

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 15 MB limit"})
		return
	}

	language := c.PostForm("language")

	item, err := h.ingest.CreateFromImage(c.Request.Context(), wishlistID, userID, data, header.Filename, language)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, item)
}

type createTextRequest struct {
	Input    string `json:"input" binding:"required"`
	Language string `json:"language"`
}

// CreateFromText handles POST /api/v1/wishlists/:id/items/text.
// The input is classified as URL or free text; responds 202 with the
// PENDING item.
func (h *ItemHandler) CreateFromText(c *gin.Context) {
	userID := actingUser(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}
	wishlistID := c.Param("id")

	var req createTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	item, err := h.ingest.CreateFromText(c.Request.Context(), wishlistID, userID, req.Input, req.Language)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, item)
}

// GetItem handles GET /api/v1/items/:id. Clients poll this to observe the
// enrichment status transition.
func (h *ItemHandler) GetItem(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item ID is required"})
		return
	}

	item, err := h.items.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListItems handles GET /api/v1/wishlists/:id/items.
func (h *ItemHandler) ListItems(c *gin.Context) {
	wishlistID := c.Param("id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.items.ListByWishlist(c.Request.Context(), wishlistID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}
