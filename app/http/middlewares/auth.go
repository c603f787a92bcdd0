package middlewares

import (
	"errors"
	"fmt"
	"strings"

	"zufang/pkg/config"
	"zufang/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims 用户服务签发的令牌载荷
// 各后台服务共享同一个 HS256 密钥互信
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthJWT 校验 Bearer 令牌并把用户身份写入上下文
func AuthJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Abort401(c, "缺少认证令牌")
			return
		}

		claims, err := parseToken(token)
		if err != nil {
			response.Abort401(c, "认证令牌无效或已过期")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		// 透传原始令牌，调用协作服务查询用户数据时使用
		c.Set("bearer_token", c.GetHeader("Authorization"))
		c.Next()
	}
}

// AuthAdmin 仅放行管理员，必须挂在 AuthJWT 之后
func AuthAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != "admin" {
			response.Abort403(c, "需要管理员权限")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

func parseToken(raw string) (*Claims, error) {
	secret := config.GetString("jwt.secret")
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		// 兼容以 subject 传用户 ID 的旧令牌
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing user id")
	}
	return claims, nil
}
