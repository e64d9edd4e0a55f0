package service_test // 测试包

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
	"github.com/Slink21Taken/InspiraShare/internal/repository"
	"github.com/Slink21Taken/InspiraShare/internal/repository/mocks"
	"github.com/Slink21Taken/InspiraShare/internal/service"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

// --- 测试 VerifyOrCreate 方法 ---

func TestRoomService_VerifyOrCreate_CreatesNewRoom(t *testing.T) {
	// Arrange: 房间凭证不存在，应以提交的密码创建
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	ctx := context.Background()
	roomNum := "ABCD-EFGH-1234"
	password := "hunter2"

	mockRepo.On("FindByRoomNum", ctx, roomNum).
		Return(nil, repository.ErrRoomNotFound).
		Once()
	mockRepo.On("Save", ctx, mock.MatchedBy(func(cred *domain.RoomCredential) bool {
		assert.Equal(t, roomNum, cred.RoomNum)
		// 存储的必须是哈希而不是明文
		assert.NotEqual(t, password, cred.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cred.Password), []byte(password)))
		return true
	})).Return(nil).Once()

	// Act
	result, err := roomService.VerifyOrCreate(ctx, roomNum, password)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Exists)
	assert.True(t, result.ValidPassword)
	assert.True(t, result.Created)

	mockRepo.AssertExpectations(t)
}

func TestRoomService_VerifyOrCreate_ExistingRoomCorrectPassword(t *testing.T) {
	// Arrange: 凭证已存在且密码正确，重复校验不得写存储
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	ctx := context.Background()
	roomNum := "ABCD-EFGH-1234"
	password := "hunter2"
	cred := &domain.RoomCredential{ID: 1, RoomNum: roomNum, Password: hashFor(t, password)}

	mockRepo.On("FindByRoomNum", ctx, roomNum).Return(cred, nil).Twice()

	// Act: 同一组正确凭证校验两次
	first, err1 := roomService.VerifyOrCreate(ctx, roomNum, password)
	second, err2 := roomService.VerifyOrCreate(ctx, roomNum, password)

	// Assert: 结果一致且从未调用 Save (幂等)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.True(t, first.Exists)
	assert.True(t, first.ValidPassword)
	assert.False(t, first.Created)

	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_VerifyOrCreate_ExistingRoomWrongPassword(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	ctx := context.Background()
	roomNum := "ABCD-EFGH-1234"
	cred := &domain.RoomCredential{ID: 1, RoomNum: roomNum, Password: hashFor(t, "correct")}

	mockRepo.On("FindByRoomNum", ctx, roomNum).Return(cred, nil).Once()

	// Act
	result, err := roomService.VerifyOrCreate(ctx, roomNum, "wrong")

	// Assert: 密码不匹配不是错误，但校验未通过且无状态变更
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.False(t, result.ValidPassword)

	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_VerifyOrCreate_ConcurrentCreateFallsBackToVerify(t *testing.T) {
	// Arrange: Save 因唯一索引冲突失败 (两个首次 verify 撞车)，
	// 应退回到重新读取并校验的路径
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	ctx := context.Background()
	roomNum := "ABCD-EFGH-1234"
	password := "hunter2"
	winner := &domain.RoomCredential{ID: 2, RoomNum: roomNum, Password: hashFor(t, password)}

	mockRepo.On("FindByRoomNum", ctx, roomNum).Return(nil, repository.ErrRoomNotFound).Once()
	mockRepo.On("Save", ctx, mock.AnythingOfType("*domain.RoomCredential")).
		Return(repository.ErrDuplicateEntry).Once()
	mockRepo.On("FindByRoomNum", ctx, roomNum).Return(winner, nil).Once()

	// Act
	result, err := roomService.VerifyOrCreate(ctx, roomNum, password)

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.True(t, result.ValidPassword)
	assert.False(t, result.Created)

	mockRepo.AssertExpectations(t)
}

func TestRoomService_VerifyOrCreate_MissingInput(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)

	// Act
	_, errNoRoom := roomService.VerifyOrCreate(context.Background(), "", "pw")
	_, errNoPassword := roomService.VerifyOrCreate(context.Background(), "ABCD-EFGH-1234", "")

	// Assert: 输入校验在任何存储访问之前完成
	assert.True(t, errors.Is(errNoRoom, service.ErrInvalidInput))
	assert.True(t, errors.Is(errNoPassword, service.ErrInvalidInput))
	mockRepo.AssertNotCalled(t, "FindByRoomNum", mock.Anything, mock.Anything)
}

func TestRoomService_VerifyOrCreate_StoreUnavailable(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.RoomCredentialRepository)
	roomService := service.NewRoomService(mockRepo)
	ctx := context.Background()

	mockRepo.On("FindByRoomNum", ctx, "ABCD-EFGH-1234").
		Return(nil, errors.New("connection refused")).Once()

	// Act
	result, err := roomService.VerifyOrCreate(ctx, "ABCD-EFGH-1234", "pw")

	// Assert
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
	mockRepo.AssertExpectations(t)
}
