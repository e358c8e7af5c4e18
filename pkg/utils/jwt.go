package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry 读取 JWT 的 exp，不校验签名（签名只有服务端能验证）
// 非 JWT 或没有 exp 时 ok 为 false
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpired 令牌确定已过期时返回 true；无法判断时交给服务端
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}
