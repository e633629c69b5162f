package repository

import (
	"errors"
	"fmt"

	"github.com/nehaa3012/LMS/internal/util"

	"gorm.io/gorm"
)

// translate 把 gorm.ErrRecordNotFound 转成领域错误 util.ErrNotFound
func translate(err error, what string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", util.ErrNotFound, what, id)
	}
	return err
}
