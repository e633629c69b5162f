package middleware

import (
	"errors"
	"strings"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserSyncer 把令牌主体映射为本地用户
type UserSyncer interface {
	Resolve(c *gin.Context, claims *util.Claims) (*model.User, error)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AuthMiddleware 校验身份服务签发的令牌，并把本地用户 ID 写入上下文
func AuthMiddleware(cfg *config.JWTConfig, users UserSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.Secret, cfg.Issuer)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		user, err := users.Resolve(c, claims)
		if err != nil {
			if errors.Is(err, util.ErrValidation) {
				util.Unauthorized(c)
			} else {
				util.LogInternalError(c, err)
			}
			c.Abort()
			return
		}

		c.Set(util.ContextClaimsKey, claims)
		c.Set(util.ContextUserIDKey, user.ID)
		c.Next()
	}
}
