package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/httpx"
)

const ctxIdentityKey = "identity"

func unauthorized(c *gin.Context, msg string) {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	body.Error.Code = "UNAUTHENTICATED"
	body.Error.Message = msg
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// RequireAuth: Authorization: Bearer <token> を検証して context に Identity を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			unauthorized(c, "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			unauthorized(c, "empty token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "invalid claims")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c, "invalid sub")
			return
		}

		// role 無しの古いトークンは MEMBER 扱い
		role := RoleMember
		if v, ok := claims["role"].(string); ok && v != "" {
			role, err = NormalizeRole(v)
			if err != nil {
				unauthorized(c, "invalid role")
				return
			}
		}

		c.Set(ctxIdentityKey, Identity{UserID: sub, Role: role})
		c.Next()
	}
}

// RequireManager は管理ロール以外を 403 で弾く。RequireAuth の後ろに置く。
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !id.Role.CanManage() {
			httpx.RespondError(c, apperr.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// MustIdentity is for handlers mounted behind RequireAuth.
func MustIdentity(c *gin.Context) Identity {
	id, ok := IdentityFrom(c)
	if !ok {
		panic("auth: identity missing, route not behind RequireAuth")
	}
	return id
}
