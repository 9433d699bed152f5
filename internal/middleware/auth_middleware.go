package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recoveryos/config"
	"recoveryos/models"
)

// CachedOrgContext - данные сотрудника и его организации, которые кладутся
// в Redis, чтобы не ходить в БД на каждый запрос.
type CachedOrgContext struct {
	UserID uint   `json:"user_id"`
	OrgID  uint   `json:"org_id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
}

// AuthMiddleware аутентифицирует запрос по JWT (cookie или Bearer) и кладет
// в контекст org_id/user_id/role. Все финансовые хендлеры доверяют этим
// значениям и сами авторизацию не делают.
func AuthMiddleware(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie("auth_token")
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				handleAuthError(c, "Authorization token not provided")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handleAuthError(c, "Invalid Authorization header format")
				return
			}
			tokenStr = parts[1]
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.JwtKey, nil
		})
		if err != nil || !token.Valid {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handleAuthError(c, "Invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			handleAuthError(c, "Invalid user ID format in token")
			return
		}
		orgIDFloat, ok := claims["org_id"].(float64)
		if !ok {
			handleAuthError(c, "Invalid org ID format in token")
			return
		}
		userID := uint(userIDFloat)
		orgID := uint(orgIDFloat)

		cacheKey := fmt.Sprintf("user:%d:org:%d", userID, orgID)
		if rdb != nil {
			cachedData, err := rdb.Get(c.Request.Context(), cacheKey).Result()
			if err == nil {
				var orgCtx CachedOrgContext
				if json.Unmarshal([]byte(cachedData), &orgCtx) == nil {
					setContextAndProceed(c, &orgCtx)
					return
				}
				slog.Warn("Failed to unmarshal cached org context", "user_id", userID)
			} else if err != redis.Nil {
				slog.Error("Redis GET command failed", "error", err, "user_id", userID)
			}
		}

		var membership models.OrgMembership
		if err := db.Where("user_id = ? AND org_id = ?", userID, orgID).First(&membership).Error; err != nil {
			handleAuthError(c, "User is not a member of this organization")
			return
		}
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "User from token not found in DB")
			return
		}

		orgCtx := CachedOrgContext{
			UserID: user.ID,
			OrgID:  orgID,
			Login:  user.Login,
			Role:   membership.Role,
		}

		if rdb != nil {
			jsonData, err := json.Marshal(orgCtx)
			if err != nil {
				slog.Error("Failed to marshal org context for caching", "error", err, "user_id", userID)
			} else if err := rdb.Set(c.Request.Context(), cacheKey, jsonData, 10*time.Minute).Err(); err != nil {
				slog.Error("Failed to SET org context to cache", "error", err, "user_id", userID)
			}
		}

		setContextAndProceed(c, &orgCtx)
	}
}

func setContextAndProceed(c *gin.Context, orgCtx *CachedOrgContext) {
	c.Set("user_id", orgCtx.UserID)
	c.Set("org_id", orgCtx.OrgID)
	c.Set("login", orgCtx.Login)
	c.Set("role", orgCtx.Role)
	c.Next()
}

// RequireRole пропускает только сотрудников с одной из перечисленных ролей.
// owner проходит всегда.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found in context"})
			c.Abort()
			return
		}
		role, ok := roleValue.(string)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Internal role format error"})
			c.Abort()
			return
		}
		if role == "owner" {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		c.Abort()
	}
}

func handleAuthError(c *gin.Context, message string) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusFound, "/")
	} else {
		c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	}
	c.Abort()
}
