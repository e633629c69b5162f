package controller

import (
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

type SubmitAttemptRequest struct {
	Answers map[uint]string `json:"answers"`
}

// @Summary 获取测验
// @Description 题目不含正确答案，附带当前用户的作答历史
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizView}
// @Failure 404 {object} util.Response
// @Router /api/quiz/{quizId} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID, err := util.ParseID(ctx.Param("quizId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	view, err := c.QuizService.GetQuiz(ctx.Request.Context(), util.GetUserIDFromContext(ctx), quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 提交测验
// @Description answers 为 题目ID -> 答案；通过得 20 分，满分额外 10 分
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Param request body SubmitAttemptRequest true "作答"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{quizId}/attempt [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	quizID, err := util.ParseID(ctx.Param("quizId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	var req SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "answers must map question ids to answer strings")
		return
	}

	result, err := c.QuizService.SubmitAttempt(ctx.Request.Context(), util.GetUserIDFromContext(ctx), quizID, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
