package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
	"github.com/Slink21Taken/InspiraShare/internal/hub"
	"github.com/Slink21Taken/InspiraShare/internal/repository"
	"github.com/Slink21Taken/InspiraShare/internal/repository/mocks"
	"github.com/Slink21Taken/InspiraShare/internal/service"
)

// newTestHandler 组装一个带 mock 凭证库的 RoomHandler，不依赖真实 MySQL/Redis。
func newTestHandler(t *testing.T) (*RoomHandler, *mocks.RoomCredentialRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	tokenService, err := service.NewRoomTokenService("test-secret", 0)
	require.NoError(t, err)
	h := hub.NewHub(service.NewSessionAuthService(mockRepo))
	return NewRoomHandler(roomService, tokenService, h), mockRepo
}

func postVerify(t *testing.T, handler *RoomHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/api/verify", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Verify(c)
	return w
}

func TestVerify_NewRoomSetsTokenCookie(t *testing.T) {
	// Arrange: 房间不存在，/verify 应创建并下发令牌
	handler, mockRepo := newTestHandler(t)
	mockRepo.On("FindByRoomNum", mock.Anything, "ABCD-EFGH-1234").
		Return(nil, repository.ErrRoomNotFound).Once()
	mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	// Act
	w := postVerify(t, handler, `{"roomId":"ABCD-EFGH-1234","password":"hunter2"}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.True(t, resp.ValidPassword)
	assert.Equal(t, "/room/ABCD-EFGH-1234", resp.Redirect)

	// 令牌走 httpOnly cookie，不进 URL 或响应体
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RoomTokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, resp.Redirect, cookies[0].Value)
	mockRepo.AssertExpectations(t)
}

func TestVerify_WrongPasswordNoCookie(t *testing.T) {
	// Arrange
	handler, mockRepo := newTestHandler(t)
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	mockRepo.On("FindByRoomNum", mock.Anything, "ABCD-EFGH-1234").
		Return(&domain.RoomCredential{ID: 1, RoomNum: "ABCD-EFGH-1234", Password: string(hashed)}, nil).Once()

	// Act
	w := postVerify(t, handler, `{"roomId":"ABCD-EFGH-1234","password":"wrong"}`)

	// Assert: 200 + validPassword=false，不下发令牌
	assert.Equal(t, http.StatusOK, w.Code)
	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.False(t, resp.ValidPassword)
	assert.Empty(t, resp.Redirect)
	assert.Empty(t, w.Result().Cookies())
	mockRepo.AssertExpectations(t)
}

func TestVerify_MissingFields(t *testing.T) {
	// Arrange
	handler, mockRepo := newTestHandler(t)

	// Act & Assert: 绑定校验直接拒绝，不触碰存储
	for _, body := range []string{`{}`, `{"roomId":"R1"}`, `{"password":"pw"}`, `not-json`} {
		w := postVerify(t, handler, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
	mockRepo.AssertNotCalled(t, "FindByRoomNum")
}

func TestEnterRoom_TokenRoomMismatchRedirects(t *testing.T) {
	// Arrange: 令牌绑定的房间与路径参数不一致
	handler, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/room/other-room", nil)
	c.Params = gin.Params{{Key: "roomId", Value: "other-room"}}
	c.Set("token_room", "ABCD-EFGH-1234")

	// Act
	handler.EnterRoom(c)

	// Assert
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/?error=auth", w.Header().Get("Location"))
}

func TestEnterRoom_MatchingToken(t *testing.T) {
	// Arrange
	handler, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/room/ABCD-EFGH-1234", nil)
	c.Params = gin.Params{{Key: "roomId", Value: "ABCD-EFGH-1234"}}
	c.Set("token_room", "ABCD-EFGH-1234")

	// Act
	handler.EnterRoom(c)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ABCD-EFGH-1234")
}
