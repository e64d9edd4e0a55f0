package repository

import (
	"context"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
)

// RoomCredentialRepository 定义了房间凭证的存储和检索操作。
// 这是核心与持久化凭证库之间唯一的桥梁，核心永远不会读写明文密码。
type RoomCredentialRepository interface {
	// FindByRoomNum 根据房间号查找凭证记录。
	// 如果记录不存在，应返回明确的错误 ErrRoomNotFound。
	FindByRoomNum(ctx context.Context, roomNum string) (*domain.RoomCredential, error)

	// Save 保存凭证记录。
	// 如果房间号已存在 (唯一索引冲突)，应返回 ErrDuplicateEntry。
	Save(ctx context.Context, cred *domain.RoomCredential) error
}
