package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
	"github.com/Slink21Taken/InspiraShare/internal/repository"
)

// RoomService 负责房间凭证的校验与创建 (HTTP /verify 的业务逻辑)。
type RoomService struct {
	credRepo repository.RoomCredentialRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(credRepo repository.RoomCredentialRepository) *RoomService {
	if credRepo == nil {
		panic("RoomCredentialRepository cannot be nil for RoomService")
	}
	return &RoomService{credRepo: credRepo}
}

// VerifyResult 描述一次房间凭证校验的结果。
type VerifyResult struct {
	Exists        bool // 房间凭证在持久化存储中存在 (包括本次刚创建的情况)
	ValidPassword bool // 提供的密码通过了校验
	Created       bool // 本次调用创建了新的凭证记录
}

// VerifyOrCreate 校验房间密码；如果房间尚不存在则以该密码创建它。
// 对同一组正确的 (roomNum, password) 重复调用不会产生第二条记录，
// 也不会修改已有记录。
func (s *RoomService) VerifyOrCreate(ctx context.Context, roomNum, password string) (*VerifyResult, error) {
	if roomNum == "" || password == "" {
		return nil, ErrInvalidInput
	}
	logCtx := logrus.WithField("room_num", roomNum)

	cred, err := s.credRepo.FindByRoomNum(ctx, roomNum)
	if err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
		logCtx.WithError(err).Error("VerifyOrCreate: failed to look up room credential")
		return nil, ErrInternalServer
	}

	// 已有凭证：只做校验，绝不改写存储
	if cred != nil {
		if !checkPassword(password, cred.Password) {
			logCtx.Warn("VerifyOrCreate: password mismatch for existing room")
			return &VerifyResult{Exists: true, ValidPassword: false}, nil
		}
		return &VerifyResult{Exists: true, ValidPassword: true}, nil
	}

	// 凭证不存在：以提供的密码创建房间
	hashed, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("VerifyOrCreate: failed to hash room password")
		return nil, ErrInternalServer
	}
	newCred := &domain.RoomCredential{RoomNum: roomNum, Password: hashed}
	if err := s.credRepo.Save(ctx, newCred); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 两个并发的首次 verify 撞在了一起，退回到纯校验路径
			logCtx.Warn("VerifyOrCreate: concurrent room creation detected, re-verifying")
			return s.verifyExisting(ctx, roomNum, password)
		}
		logCtx.WithError(err).Error("VerifyOrCreate: failed to save new room credential")
		return nil, ErrInternalServer
	}

	logCtx.WithField("credential_id", newCred.ID).Info("Room credential created")
	return &VerifyResult{Exists: true, ValidPassword: true, Created: true}, nil
}

// verifyExisting 在创建撞车后重新读取并校验凭证。
func (s *RoomService) verifyExisting(ctx context.Context, roomNum, password string) (*VerifyResult, error) {
	cred, err := s.credRepo.FindByRoomNum(ctx, roomNum)
	if err != nil {
		logrus.WithField("room_num", roomNum).WithError(err).Error("VerifyOrCreate: re-verify lookup failed")
		return nil, ErrInternalServer
	}
	return &VerifyResult{Exists: true, ValidPassword: checkPassword(password, cred.Password)}, nil
}

// --- 私有辅助函数 ---

// hashPassword 使用 bcrypt 对房间密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
