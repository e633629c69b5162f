package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/events"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const certificateNumberAttempts = 5

type CertificateService struct {
	CertificateRepo *repository.CertificateRepository
	CourseRepo      *repository.CourseRepository
	ProgressRepo    *repository.ProgressRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	UserRepo        *repository.UserRepository
	Storage         *StorageService
	Renderer        *CertificateRenderer
	Achievements    *AchievementService
	Events          events.Publisher
	Now             Clock
	NewNumber       func() string

	// OnRankChanged 发证时补标课程完成后回调
	OnRankChanged func(ctx context.Context)
}

func NewCertificateService(
	certificateRepo *repository.CertificateRepository,
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	userRepo *repository.UserRepository,
	storage *StorageService,
	renderer *CertificateRenderer,
	achievements *AchievementService,
	publisher events.Publisher,
) *CertificateService {
	return &CertificateService{
		CertificateRepo: certificateRepo,
		CourseRepo:      courseRepo,
		ProgressRepo:    progressRepo,
		EnrollmentRepo:  enrollmentRepo,
		UserRepo:        userRepo,
		Storage:         storage,
		Renderer:        renderer,
		Achievements:    achievements,
		Events:          publisher,
		Now:             systemClock,
		NewNumber:       NewCertificateNumber,
	}
}

// NewCertificateNumber CERT- 加 12 位大写十六进制
func NewCertificateNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CERT-" + strings.ToUpper(id[:12])
}

// IssueCertificateIfEligible 课程全部完成才发证；重复调用返回同一张证书，created 为 false
func (s *CertificateService) IssueCertificateIfEligible(ctx context.Context, userID, courseID uint) (*model.Certificate, bool, error) {
	ctx, span := tracing.Tracer.Start(ctx, "CertificateService.IssueCertificateIfEligible")
	defer span.End()

	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.CertificateRepo.FindByUserAndCourse(ctx, userID, courseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		tracing.RecordError(span, err)
		return nil, false, err
	}

	if err := s.checkEligible(ctx, userID, courseID); err != nil {
		tracing.RecordError(span, err)
		return nil, false, err
	}

	// 完成日期与签发日期都取签发时刻
	now := s.Now()
	for i := 0; i < certificateNumberAttempts; i++ {
		cert := &model.Certificate{
			UserID:            userID,
			CourseID:          courseID,
			CertificateNumber: s.NewNumber(),
			CompletionDate:    now,
			IssueDate:         now,
		}
		created, err := s.CertificateRepo.CreateIfAbsent(ctx, cert)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, false, err
		}
		if created {
			cert.Course = course
			s.afterIssued(ctx, cert, course)
			return cert, true, nil
		}

		// 冲突可能来自并发的同一请求，也可能是编号撞车
		existing, err := s.CertificateRepo.FindByUserAndCourse(ctx, userID, courseID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, util.ErrNotFound) {
			return nil, false, err
		}
		logger.Log.Warn("Certificate number collision, retrying", zap.String("number", cert.CertificateNumber))
	}
	return nil, false, fmt.Errorf("could not allocate a unique certificate number after %d attempts", certificateNumberAttempts)
}

func (s *CertificateService) checkEligible(ctx context.Context, userID, courseID uint) error {
	total, err := s.CourseRepo.CountLessons(ctx, courseID)
	if err != nil {
		return err
	}
	completed, err := s.ProgressRepo.CountCompletedInCourse(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if total == 0 || completed < total {
		return fmt.Errorf("%w: %d of %d lessons completed", util.ErrCourseNotComplete, completed, total)
	}
	return nil
}

func (s *CertificateService) afterIssued(ctx context.Context, cert *model.Certificate, course *model.Course) {
	monitoring.CertificatesIssued.Inc()
	logger.Log.Info("Certificate issued",
		zap.Uint("userId", cert.UserID),
		zap.Uint("courseId", cert.CourseID),
		zap.String("number", cert.CertificateNumber),
	)

	changed, err := s.EnrollmentRepo.MarkCompleted(ctx, cert.UserID, cert.CourseID, cert.CompletionDate)
	if err != nil {
		logger.Log.Error("Failed to mark enrollment completed", zap.Uint("certificateId", cert.ID), zap.Error(err))
	} else if changed && s.OnRankChanged != nil {
		s.OnRankChanged(ctx)
	}

	if url, err := s.storeArtifact(ctx, cert, course); err != nil {
		logger.Log.Error("Failed to store certificate artifact", zap.Uint("certificateId", cert.ID), zap.Error(err))
	} else if url != "" {
		cert.ArtifactURL = url
	}

	events.Emit(ctx, s.Events, events.SubjectCertificateIssued, cert.UserID, events.CertificateIssued{
		CertificateID:     cert.ID,
		CourseID:          cert.CourseID,
		CertificateNumber: cert.CertificateNumber,
	})

	if s.Achievements != nil {
		if _, err := s.Achievements.EvaluateAndUnlock(ctx, cert.UserID); err != nil {
			logger.Log.Error("Failed to evaluate achievements", zap.Uint("userId", cert.UserID), zap.Error(err))
		}
	}
}

func (s *CertificateService) storeArtifact(ctx context.Context, cert *model.Certificate, course *model.Course) (string, error) {
	if s.Renderer == nil || s.Storage == nil {
		return "", nil
	}
	userName := ""
	if user, err := s.UserRepo.FindByID(ctx, cert.UserID); err == nil {
		userName = user.Name
	}
	png, err := s.Renderer.Render(cert, userName, course.Title)
	if err != nil {
		return "", err
	}
	url, err := s.Storage.UploadBytes(ctx, "certificates/"+cert.CertificateNumber+".png", png, util.MimePNG)
	if err != nil {
		return "", err
	}
	if err := s.CertificateRepo.SetArtifactURL(ctx, cert.ID, url); err != nil {
		return "", err
	}
	return url, nil
}

func (s *CertificateService) ListCertificates(ctx context.Context, userID uint) ([]model.Certificate, error) {
	certs, err := s.CertificateRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if certs == nil {
		certs = []model.Certificate{}
	}
	return certs, nil
}

// GetCertificate 只有证书持有人可以查看
func (s *CertificateService) GetCertificate(ctx context.Context, userID, certificateID uint) (*model.Certificate, error) {
	cert, err := s.CertificateRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.UserID != userID {
		return nil, fmt.Errorf("%w: certificate %d belongs to another user", util.ErrUnauthorized, certificateID)
	}
	return cert, nil
}

// CertificateVerification 公开校验结果，不暴露用户 ID
type CertificateVerification struct {
	CertificateNumber string `json:"certificateNumber"`
	HolderName        string `json:"holderName"`
	CourseTitle       string `json:"courseTitle"`
	CompletionDate    string `json:"completionDate"`
	IssueDate         string `json:"issueDate"`
}

func (s *CertificateService) VerifyCertificate(ctx context.Context, number string) (*CertificateVerification, error) {
	cert, err := s.CertificateRepo.FindByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	v := &CertificateVerification{
		CertificateNumber: cert.CertificateNumber,
		CompletionDate:    cert.CompletionDate.Format(util.DateFormat),
		IssueDate:         cert.IssueDate.Format(util.DateFormat),
	}
	if cert.Course != nil {
		v.CourseTitle = cert.Course.Title
	}
	if user, err := s.UserRepo.FindByID(ctx, cert.UserID); err == nil {
		v.HolderName = user.Name
	}
	return v, nil
}
