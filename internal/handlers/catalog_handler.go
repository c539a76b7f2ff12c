package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
)

// CatalogHandler serves the read-only data the voting pages need.
type CatalogHandler struct {
	contestants interfaces.ContestantRepository
	streetfoods interfaces.StreetfoodRepository
	seasons     interfaces.SeasonRepository
}

func NewCatalogHandler(
	contestants interfaces.ContestantRepository,
	streetfoods interfaces.StreetfoodRepository,
	seasons interfaces.SeasonRepository,
) *CatalogHandler {
	return &CatalogHandler{
		contestants: contestants,
		streetfoods: streetfoods,
		seasons:     seasons,
	}
}

func (h *CatalogHandler) ListContestants(c *gin.Context) {
	contestants, err := h.contestants.ListCurrent(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch contestants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contestants": contestants})
}

func (h *CatalogHandler) GetContestant(c *gin.Context) {
	contestant, err := h.contestants.GetByID(c.Request.Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "contestant not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch contestant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contestant": contestant})
}

func (h *CatalogHandler) ListStreetfoods(c *gin.Context) {
	items, err := h.streetfoods.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch streetfoods"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streetFoods": items})
}

func (h *CatalogHandler) GetCurrentSeason(c *gin.Context) {
	season, err := h.seasons.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch current season"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentSeason": season})
}

func (h *CatalogHandler) ListPerformanceTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"performanceTypes": models.PerformanceTypes})
}
