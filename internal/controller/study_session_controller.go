package controller

import (
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
)

type StudySessionController struct {
	StudySessionService *service.StudySessionService
}

func NewStudySessionController(studySessionService *service.StudySessionService) *StudySessionController {
	return &StudySessionController{StudySessionService: studySessionService}
}

type StartSessionRequest struct {
	CourseID uint  `json:"courseId" binding:"required"`
	LessonID *uint `json:"lessonId"`
}

type EndSessionRequest struct {
	SessionID uint `json:"sessionId" binding:"required"`
}

// @Summary 开始学习会话
// @Tags 学习会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StartSessionRequest true "课程/课时"
// @Success 201 {object} util.Response{data=model.StudySession}
// @Failure 404 {object} util.Response
// @Router /api/study-session/start [post]
func (c *StudySessionController) Start(ctx *gin.Context) {
	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.StudySessionService.StartSession(ctx.Request.Context(), util.GetUserIDFromContext(ctx), req.CourseID, req.LessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// @Summary 结束学习会话
// @Description 每满一分钟得 1 分；已结束的会话返回 409
// @Tags 学习会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EndSessionRequest true "会话"
// @Success 200 {object} util.Response{data=service.EndSessionResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/study-session/end [post]
func (c *StudySessionController) End(ctx *gin.Context) {
	var req EndSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.StudySessionService.EndSession(ctx.Request.Context(), util.GetUserIDFromContext(ctx), req.SessionID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
