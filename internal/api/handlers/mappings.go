package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	"github.com/shopbridge/syncengine/internal/service"
)

// MappingResponse represents one product mapping
type MappingResponse struct {
	ID                string               `json:"id"`
	SupplierProductID string               `json:"supplier_product_id"`
	RetailerProductID *string              `json:"retailer_product_id,omitempty"`
	Status            domain.MappingStatus `json:"status"`
	Shadow            bool                 `json:"shadow"`
	LastError         *string              `json:"last_error,omitempty"`
	CreatedAt         string               `json:"created_at"`
	UpdatedAt         string               `json:"updated_at"`
}

func toMappingResponse(m *domain.ProductMapping) MappingResponse {
	return MappingResponse{
		ID:                m.ID.String(),
		SupplierProductID: m.SupplierProductID,
		RetailerProductID: m.RetailerProductID,
		Status:            m.Status,
		Shadow:            m.IsShadow(),
		LastError:         m.LastError,
		CreatedAt:         m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ownedMapping parses the :id param and checks the mapping belongs to
// the authenticated connection. Replies and returns nil on failure.
func ownedMapping(c *gin.Context, repos *repository.Repositories, logger *zap.Logger) *domain.ProductMapping {
	conn, ok := middleware.GetConnectionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping ID"})
		return nil
	}

	mapping, err := repos.ProductMapping.GetByID(c.Request.Context(), mappingID)
	if err != nil {
		respondError(c, logger, err)
		return nil
	}

	if mapping.ConnectionID != conn.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return nil
	}
	return mapping
}

// HandleListMappings handles GET /v1/mappings
func HandleListMappings(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 50
		offset := 0
		if v, err := parseIntQuery(c, "limit"); err == nil && v > 0 && v <= 200 {
			limit = v
		}
		if v, err := parseIntQuery(c, "offset"); err == nil && v >= 0 {
			offset = v
		}

		mappings, err := repos.ProductMapping.ListByConnection(c.Request.Context(), conn.ID, limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]MappingResponse, len(mappings))
		for i, m := range mappings {
			responses[i] = toMappingResponse(m)
		}
		c.JSON(http.StatusOK, gin.H{"mappings": responses})
	}
}

// HandleGetMapping handles GET /v1/mappings/:id
func HandleGetMapping(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping := ownedMapping(c, repos, logger)
		if mapping == nil {
			return
		}
		c.JSON(http.StatusOK, toMappingResponse(mapping))
	}
}

// HandleUpdateMappingStatus handles POST /v1/mappings/:id/status
func HandleUpdateMappingStatus(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping := ownedMapping(c, repos, logger)
		if mapping == nil {
			return
		}

		var req struct {
			Status domain.MappingStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping status"})
			return
		}

		if err := repos.ProductMapping.UpdateStatus(c.Request.Context(), mapping.ID, req.Status); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	}
}

// HandleMatchVariants handles POST /v1/mappings/:id/match
func HandleMatchVariants(repos *repository.Repositories, syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping := ownedMapping(c, repos, logger)
		if mapping == nil {
			return
		}

		matches, err := syncSvc.AutoMatchVariants(c.Request.Context(), mapping.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

// HandleMapVariant handles POST /v1/mappings/:id/variants
func HandleMapVariant(repos *repository.Repositories, syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping := ownedMapping(c, repos, logger)
		if mapping == nil {
			return
		}

		var req struct {
			SupplierVariantID string `json:"supplier_variant_id" binding:"required"`
			RetailerVariantID string `json:"retailer_variant_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := syncSvc.ManuallyMapVariant(c.Request.Context(), mapping.ID, req.SupplierVariantID, req.RetailerVariantID); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "mapped"})
	}
}

// HandleUnmapVariant handles DELETE /v1/mappings/:id/variants/:variantId
func HandleUnmapVariant(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapping := ownedMapping(c, repos, logger)
		if mapping == nil {
			return
		}

		if err := repos.VariantMapping.ClearManual(c.Request.Context(), mapping.ID, c.Param("variantId")); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "unmapped"})
	}
}
