package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Slink21Taken/InspiraShare/internal/repository"
)

// RejectReason 是认证失败时下发给连接的原因码，
// 与线上协议的 auth-failed reason 一一对应。
type RejectReason string

const (
	RejectInvalidRoom RejectReason = "invalid-room"
	RejectNotFound    RejectReason = "not-found"
	RejectBadPassword RejectReason = "bad-password"
	RejectError       RejectReason = "error"
)

// CredentialVerdict 是连接认证中凭证库一侧的结论。
// 凭证库调用是整个认证流程里唯一的挂起点；Registry 相关的检查
// (活跃房间是否存在、成员插入) 必须回到 hub 事件循环上完成。
type CredentialVerdict struct {
	// RecordExists 为 true 表示持久化凭证存在且密码已通过校验。
	// 为 false 表示没有持久化记录，此时准入取决于 Registry 中
	// 是否已有同名的活跃房间。
	RecordExists bool
}

// SessionAuthService 负责 WebSocket 连接认证中需要访问凭证库的部分。
type SessionAuthService struct {
	credRepo repository.RoomCredentialRepository
}

// NewSessionAuthService 创建 SessionAuthService 实例。
func NewSessionAuthService(credRepo repository.RoomCredentialRepository) *SessionAuthService {
	if credRepo == nil {
		panic("RoomCredentialRepository cannot be nil for SessionAuthService")
	}
	return &SessionAuthService{credRepo: credRepo}
}

// CheckCredential 对照凭证库校验 (roomNum, password)。
// 返回非空的 RejectReason 表示认证在此处终止；否则返回判定结果，
// 由调用方携带进 hub 完成准入。重连必须重新走完整流程，凭证
// 不会跨连接缓存。
func (s *SessionAuthService) CheckCredential(ctx context.Context, roomNum, password string) (CredentialVerdict, RejectReason) {
	if roomNum == "" {
		return CredentialVerdict{}, RejectInvalidRoom
	}
	logCtx := logrus.WithField("room_num", roomNum)

	cred, err := s.credRepo.FindByRoomNum(ctx, roomNum)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			// 没有持久化记录。是否准入取决于活跃房间，留给 hub 判定。
			return CredentialVerdict{RecordExists: false}, ""
		}
		// 凭证库不可用映射为 error，连接不被准入
		logCtx.WithError(err).Error("CheckCredential: credential store unavailable")
		return CredentialVerdict{}, RejectError
	}

	if cred.HasPassword() && !checkPassword(password, cred.Password) {
		logCtx.Warn("CheckCredential: password mismatch")
		return CredentialVerdict{}, RejectBadPassword
	}

	return CredentialVerdict{RecordExists: true}, ""
}
