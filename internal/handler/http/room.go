package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Slink21Taken/InspiraShare/internal/hub"
	"github.com/Slink21Taken/InspiraShare/internal/service"
)

// 房间令牌的 cookie 名，由 /verify 设置、room 页路由校验
const RoomTokenCookie = "room_token"

// RoomHandler 封装了与房间校验和进入相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService  *service.RoomService
	tokenService *service.RoomTokenService
	hub          *hub.Hub
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, tokenService *service.RoomTokenService, h *hub.Hub) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if tokenService == nil {
		panic("RoomTokenService cannot be nil for RoomHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, tokenService: tokenService, hub: h}
}

// VerifyRequest 定义房间校验请求的结构体
type VerifyRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyResponse 定义房间校验的响应结构体
type VerifyResponse struct {
	Exists        bool   `json:"exists"`
	ValidPassword bool   `json:"validPassword"`
	Redirect      string `json:"redirect,omitempty"`
}

// Verify 处理房间密码校验请求。房间不存在时以提交的密码创建它。
// 校验通过后预留活跃房间并下发房间令牌 cookie；凭证只走请求体和
// cookie，绝不出现在可导航的 URL 里。
func (h *RoomHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Verify: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Missing roomId or password")
		return
	}
	logCtx := logrus.WithField("room_num", req.RoomID)

	result, err := h.roomService.VerifyOrCreate(c.Request.Context(), req.RoomID, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			ErrorResponse(c, http.StatusBadRequest, "Missing roomId or password")
			return
		}
		logCtx.WithError(err).Error("Handler.Verify: Verification failed")
		ErrorResponse(c, http.StatusInternalServerError, "Server error")
		return
	}

	if !result.ValidPassword {
		logCtx.Warn("Handler.Verify: Invalid password")
		SuccessResponse(c, http.StatusOK, VerifyResponse{Exists: true, ValidPassword: false})
		return
	}

	// 预留活跃房间，与原实现保持一致：verify 通过即在内存中建房
	h.hub.ReserveRoom(req.RoomID)

	token, err := h.tokenService.Issue(req.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Handler.Verify: Failed to issue room token")
		ErrorResponse(c, http.StatusInternalServerError, "Server error")
		return
	}
	// httpOnly cookie；secure 交给部署层的 TLS 终端决定
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RoomTokenCookie, token, int(h.tokenService.TTL().Seconds()), "/", "", false, true)

	logCtx.WithField("created", result.Created).Info("Handler.Verify: Room verified")
	SuccessResponse(c, http.StatusOK, VerifyResponse{
		Exists:        true,
		ValidPassword: true,
		Redirect:      "/room/" + req.RoomID,
	})
}

// EnterRoom 处理房间页面加载。房间令牌由中间件校验并把绑定的
// 房间号放进上下文；这里只确认路径参数与令牌一致。
// 页面本身由静态资源承载，UI 不在服务端关心范围内。
func (h *RoomHandler) EnterRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	tokenRoom := c.GetString("token_room")
	if roomID == "" || roomID != tokenRoom {
		logrus.WithFields(logrus.Fields{
			"room_num":   roomID,
			"token_room": tokenRoom,
		}).Warn("Handler.EnterRoom: Token room mismatch")
		c.Redirect(http.StatusFound, "/?error=auth")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": roomID})
}
