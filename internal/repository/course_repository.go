package repository

import (
	"context"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 课程目录只读访问
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err, "course", id)
	}
	return &course, nil
}

// LessonRef 课时及其所属课程
type LessonRef struct {
	LessonID uint
	ModuleID uint
	CourseID uint
}

func (r *CourseRepository) FindLessonRef(ctx context.Context, lessonID uint) (*LessonRef, error) {
	var ref LessonRef
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Select("lessons.id AS lesson_id, lessons.module_id, course_modules.course_id").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id AND course_modules.deleted_at IS NULL").
		Where("lessons.id = ?", lessonID).
		Take(&ref).Error
	if err != nil {
		return nil, translate(err, "lesson", lessonID)
	}
	return &ref, nil
}

// CountLessons 课程下所有模块的课时总数
func (r *CourseRepository) CountLessons(ctx context.Context, courseID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id AND course_modules.deleted_at IS NULL").
		Where("course_modules.course_id = ?", courseID).
		Count(&total).Error
	return total, err
}
