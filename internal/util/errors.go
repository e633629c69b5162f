package util

import "errors"

// 领域错误类型，服务层用 fmt.Errorf("%w: ...") 包装，控制器用 errors.Is 判断
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("permission denied")
	ErrConflict          = errors.New("conflict")
	ErrCourseNotComplete = errors.New("course not completed")
	ErrValidation        = errors.New("validation failed")
)
