package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

// AdminAuth extracts the bearer token from the request and verifies it
// against the backend. The credential travels with each call; the server is
// the sole judge of its validity.
func AdminAuth(verifier interfaces.AdminCredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		valid, err := verifier.VerifyAdminToken(c.Request.Context(), token)
		if err != nil {
			telemetry.Logger.Error("Admin token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify credentials"})
			return
		}
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Next()
	}
}

// AdminHandler covers the dashboard operations: login, catalogue management,
// eliminations, and season controls.
type AdminHandler struct {
	auth        interfaces.AdminAuthenticator
	streetfoods interfaces.StreetfoodRepository
	contestants interfaces.ContestantRepository
	seasons     interfaces.SeasonRepository
}

func NewAdminHandler(
	auth interfaces.AdminAuthenticator,
	streetfoods interfaces.StreetfoodRepository,
	contestants interfaces.ContestantRepository,
	seasons interfaces.SeasonRepository,
) *AdminHandler {
	return &AdminHandler{
		auth:        auth,
		streetfoods: streetfoods,
		contestants: contestants,
		seasons:     seasons,
	}
}

// Login handles POST /admins/login. Credentials are checked server-side and a
// fresh bearer token is issued; the client holds nothing but the opaque token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, interfaces.ErrInvalidLogin) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Admin login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type streetfoodRequest struct {
	Name      string `json:"name" binding:"required"`
	Price     int64  `json:"price" binding:"required"`
	VotePower int64  `json:"vote_power" binding:"required"`
	ImageURL  string `json:"image_url"`
}

func (h *AdminHandler) CreateStreetfood(c *gin.Context) {
	var req streetfoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Price <= 0 || req.VotePower <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and vote_power must be positive"})
		return
	}

	item := &models.StreetfoodItem{
		Name:      req.Name,
		Price:     req.Price,
		VotePower: req.VotePower,
		ImageURL:  req.ImageURL,
	}
	if err := h.streetfoods.Create(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create streetfood"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"streetFood": item})
}

func (h *AdminHandler) UpdateStreetfood(c *gin.Context) {
	var req streetfoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item := &models.StreetfoodItem{
		ID:        c.Param("id"),
		Name:      req.Name,
		Price:     req.Price,
		VotePower: req.VotePower,
		ImageURL:  req.ImageURL,
	}
	err := h.streetfoods.Update(c.Request.Context(), item)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "streetfood not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update streetfood"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streetFood": item})
}

func (h *AdminHandler) DeleteStreetfood(c *gin.Context) {
	err := h.streetfoods.Delete(c.Request.Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "streetfood not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete streetfood"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) EliminateContestant(c *gin.Context) {
	id := c.Param("id")
	err := h.contestants.Eliminate(c.Request.Context(), id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "contestant not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to eliminate contestant"})
		return
	}

	telemetry.Logger.Info("Contestant eliminated", zap.String("contestant_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "eliminated", "contestant_id": id})
}

// StartSeason handles POST /seasons: retires the current season and opens a
// new one.
func (h *AdminHandler) StartSeason(c *gin.Context) {
	var req struct {
		Status          models.SeasonStatus `json:"status"`
		RegistrationFee int64               `json:"registrationFee"`
		Acceptance      bool                `json:"acceptance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		req.Status = models.SeasonAudition
	}
	switch req.Status {
	case models.SeasonAudition, models.SeasonGroup, models.SeasonSemi, models.SeasonFinal, models.SeasonCompleted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown season status"})
		return
	}
	if req.RegistrationFee < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "registration fee must not be negative"})
		return
	}

	season := &models.Season{
		Status:          req.Status,
		Acceptance:      req.Acceptance,
		RegistrationFee: req.RegistrationFee,
	}
	if err := h.seasons.Create(c.Request.Context(), season); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start season"})
		return
	}

	telemetry.Logger.Info("New season started", zap.String("season_id", season.ID))
	c.JSON(http.StatusCreated, gin.H{"season": season})
}

func (h *AdminHandler) UpdateSeasonStatus(c *gin.Context) {
	var req struct {
		Status models.SeasonStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch req.Status {
	case models.SeasonAudition, models.SeasonGroup, models.SeasonSemi, models.SeasonFinal, models.SeasonCompleted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown season status"})
		return
	}

	if err := h.seasons.UpdateStatus(c.Request.Context(), req.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update season status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *AdminHandler) UpdateRegistrationFee(c *gin.Context) {
	var req struct {
		RegistrationFee int64 `json:"registrationFee" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.RegistrationFee < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "registration fee must not be negative"})
		return
	}

	if err := h.seasons.UpdateRegistrationFee(c.Request.Context(), req.RegistrationFee); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update registration fee"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrationFee": req.RegistrationFee})
}

func (h *AdminHandler) UpdateAcceptance(c *gin.Context) {
	var req struct {
		Acceptance *bool `json:"acceptance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.seasons.UpdateAcceptance(c.Request.Context(), *req.Acceptance); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update acceptance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acceptance": *req.Acceptance})
}
