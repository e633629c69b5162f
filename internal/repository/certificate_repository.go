package repository

import (
	"context"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	if err != nil {
		return nil, translate(err, "certificate for course", courseID)
	}
	return &cert, nil
}

// CreateIfAbsent 冲突时不报错，由调用方回读已有证书
func (r *CertificateRepository) CreateIfAbsent(ctx context.Context, cert *model.Certificate) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cert)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CertificateRepository) FindByID(ctx context.Context, id uint) (*model.Certificate, error) {
	var cert model.Certificate
	if err := r.DB.WithContext(ctx).Preload("Course").First(&cert, id).Error; err != nil {
		return nil, translate(err, "certificate", id)
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("certificate_number = ?", number).
		First(&cert).Error
	if err != nil {
		return nil, translate(err, "certificate", number)
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByUser(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("issue_date DESC").
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) SetArtifactURL(ctx context.Context, id uint, url string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ?", id).
		UpdateColumn("artifact_url", url).Error
}
