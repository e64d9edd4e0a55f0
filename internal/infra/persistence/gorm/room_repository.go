package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
	"github.com/Slink21Taken/InspiraShare/internal/repository"
)

// GormRoomCredentialRepository 是 RoomCredentialRepository 接口的 GORM 实现
type GormRoomCredentialRepository struct {
	db *gorm.DB
}

// NewGormRoomCredentialRepository 创建 GormRoomCredentialRepository 实例
func NewGormRoomCredentialRepository(db *gorm.DB) *GormRoomCredentialRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomCredentialRepository")
	}
	return &GormRoomCredentialRepository{db: db}
}

// FindByRoomNum 实现根据房间号查找凭证记录
func (r *GormRoomCredentialRepository) FindByRoomNum(ctx context.Context, roomNum string) (*domain.RoomCredential, error) {
	var cred domain.RoomCredential
	err := r.db.WithContext(ctx).Where("room_num = ?", roomNum).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound // 映射为定义的仓库错误
		}
		return nil, fmt.Errorf("gorm: find room credential by room num '%s': %w", roomNum, err)
	}
	return &cred, nil
}

// Save 实现保存凭证记录（创建或更新）
func (r *GormRoomCredentialRepository) Save(ctx context.Context, cred *domain.RoomCredential) error {
	result := r.db.WithContext(ctx).Save(cred)
	if err := result.Error; err != nil {
		// 唯一约束检查 (MySQL 错误码 1062)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room credential (id: %d, room_num: %s): %w", cred.ID, cred.RoomNum, err)
	}
	return nil
}
