package controller

import (
	"strconv"

	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
)

type GamificationController struct {
	AchievementService *service.AchievementService
	LeaderboardService *service.LeaderboardService
	PointsService      *service.PointsService
}

func NewGamificationController(
	achievementService *service.AchievementService,
	leaderboardService *service.LeaderboardService,
	pointsService *service.PointsService,
) *GamificationController {
	return &GamificationController{
		AchievementService: achievementService,
		LeaderboardService: leaderboardService,
		PointsService:      pointsService,
	}
}

// @Summary 获取用户成就
// @Description 已解锁、未解锁成就及当前统计
// @Tags 成就系统
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.UserAchievements}
// @Router /api/achievements [get]
func (c *GamificationController) GetAchievements(ctx *gin.Context) {
	achievements, err := c.AchievementService.GetAchievements(ctx.Request.Context(), util.GetUserIDFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, achievements)
}

// @Summary 获取排行榜
// @Description 积分降序，同分按注册先后
// @Tags 成就系统
// @Produce json
// @Param limit query int false "返回数量" default(10)
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /api/leaderboard [get]
func (c *GamificationController) GetLeaderboard(ctx *gin.Context) {
	limit := 0
	if limitStr := ctx.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	leaderboard, err := c.LeaderboardService.GetLeaderboard(ctx.Request.Context(), limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, leaderboard)
}

// @Summary 积分流水
// @Tags 成就系统
// @Produce json
// @Security BearerAuth
// @Param limit query int false "返回数量" default(50)
// @Success 200 {object} util.Response{data=[]model.PointEntry}
// @Router /api/points/history [get]
func (c *GamificationController) GetPointsHistory(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	entries, err := c.PointsService.GetHistory(ctx.Request.Context(), util.GetUserIDFromContext(ctx), limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
