package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"training-service/internal/dto"
	"training-service/internal/models"
	"training-service/internal/repository"
	"training-service/pkg/cache"

	"github.com/gin-gonic/gin"
)

const leaderboardCacheKey = "leaderboard:top"
const leaderboardCacheTTL = 30 * time.Second

type ProfileHandler struct {
	statsRepo   *repository.StatsRepository
	badgeRepo   *repository.BadgeRepository
	redisClient *cache.RedisClient
}

func NewProfileHandler(statsRepo *repository.StatsRepository, badgeRepo *repository.BadgeRepository, redisClient *cache.RedisClient) *ProfileHandler {
	return &ProfileHandler{
		statsRepo:   statsRepo,
		badgeRepo:   badgeRepo,
		redisClient: redisClient,
	}
}

// GetProfile returns the authenticated user's cumulative stats and badges.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")

	stats, err := h.statsRepo.GetStats(c.Request.Context(), userID)
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	earned, err := h.badgeRepo.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"earned": earned,
	})
}

// GetLeaderboard returns the top users by total score. The result is cached
// briefly in Redis since every profile page hits it.
func (h *ProfileHandler) GetLeaderboard(c *gin.Context) {
	limit := 10
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	ctx := c.Request.Context()

	if h.redisClient != nil && limit == 10 {
		var entries []models.LeaderboardEntry
		if err := h.redisClient.GetJSON(ctx, leaderboardCacheKey, &entries); err == nil {
			c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
			return
		}
	}

	entries, err := h.statsRepo.GetLeaderboard(ctx, limit)
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	if h.redisClient != nil && limit == 10 {
		if err := h.redisClient.SetJSON(ctx, leaderboardCacheKey, entries, leaderboardCacheTTL); err != nil {
			log.Printf("Failed to cache leaderboard: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// ListBadges returns the full badge catalog.
func (h *ProfileHandler) ListBadges(c *gin.Context) {
	badges, err := h.badgeRepo.ListBadges(c.Request.Context())
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load badges")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}
