package controller

import (
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary 报名课程
// @Description 重复报名返回已有报名记录
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Success 201 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/enroll [post]
func (c *ProgressController) Enroll(ctx *gin.Context) {
	courseID, err := util.ParseID(ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	enrollment, created, err := c.ProgressService.Enroll(ctx.Request.Context(), util.GetUserIDFromContext(ctx), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if created {
		util.Created(ctx, enrollment)
		return
	}
	util.Success(ctx, enrollment)
}

// @Summary 获取课程进度
// @Description 未报名时返回 0%
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
	courseID, err := util.ParseID(ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	progress, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), util.GetUserIDFromContext(ctx), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 上报课时进度
// @Description timeSpent 为本次新增的秒数；完成状态不会被回退
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Param request body service.ProgressUpdate true "进度"
// @Success 200 {object} util.Response{data=model.Progress}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/lessons/{lessonId}/progress [post]
func (c *ProgressController) RecordLessonProgress(ctx *gin.Context) {
	lessonID, err := util.ParseID(ctx.Param("lessonId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	var req service.ProgressUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.RecordLessonProgress(ctx.Request.Context(), util.GetUserIDFromContext(ctx), lessonID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
