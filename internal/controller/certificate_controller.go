package controller

import (
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

type GenerateCertificateRequest struct {
	CourseID uint `json:"courseId" binding:"required"`
}

// @Summary 生成结课证书
// @Description 课程所有课时完成后发放；重复调用返回同一张证书
// @Tags 证书
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateCertificateRequest true "课程"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Success 201 {object} util.Response{data=model.Certificate}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/certificates/generate [post]
func (c *CertificateController) Generate(ctx *gin.Context) {
	var req GenerateCertificateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cert, created, err := c.CertificateService.IssueCertificateIfEligible(ctx.Request.Context(), util.GetUserIDFromContext(ctx), req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if created {
		util.Created(ctx, cert)
		return
	}
	util.Success(ctx, cert)
}

// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) List(ctx *gin.Context) {
	certs, err := c.CertificateService.ListCertificates(ctx.Request.Context(), util.GetUserIDFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// @Summary 证书详情
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "证书ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/certificates/{id} [get]
func (c *CertificateController) Get(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	cert, err := c.CertificateService.GetCertificate(ctx.Request.Context(), util.GetUserIDFromContext(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// @Summary 校验证书
// @Description 公开接口，按证书编号查询
// @Tags 证书
// @Produce json
// @Param number path string true "证书编号"
// @Success 200 {object} util.Response{data=service.CertificateVerification}
// @Failure 404 {object} util.Response
// @Router /api/certificates/verify/{number} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	v, err := c.CertificateService.VerifyCertificate(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, v)
}
