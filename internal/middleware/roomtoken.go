package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Slink21Taken/InspiraShare/internal/service"
)

// RoomToken 返回一个 Gin 中间件，校验 /verify 下发的房间令牌 cookie。
// 校验通过后把令牌绑定的房间号写入上下文 ("token_room")。
// 失败不报错页，而是把用户导回入口，与原实现一致。
func RoomToken(tokenService *service.RoomTokenService, cookieName string) gin.HandlerFunc {
	if tokenService == nil {
		panic("RoomTokenService cannot be nil for RoomToken middleware")
	}
	if cookieName == "" {
		panic("cookie name cannot be empty for RoomToken middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(cookieName)
		if err != nil || tokenStr == "" {
			logrus.Debug("RoomToken middleware: Missing room token cookie")
			c.Redirect(http.StatusFound, "/?error=auth")
			c.Abort()
			return
		}

		room, err := tokenService.Validate(tokenStr)
		if err != nil {
			// 过期或签名无效，一律回到入口重新验证
			logrus.WithError(err).Debug("RoomToken middleware: Invalid room token")
			c.Redirect(http.StatusFound, "/?error=auth")
			c.Abort()
			return
		}

		c.Set("token_room", room)
		c.Next()
	}
}
