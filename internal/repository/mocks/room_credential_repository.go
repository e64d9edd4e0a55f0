// Package mocks 提供 repository 接口的 testify Mock 实现，仅用于测试。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
)

// RoomCredentialRepository 是 repository.RoomCredentialRepository 的 Mock 实现。
type RoomCredentialRepository struct {
	mock.Mock
}

func (m *RoomCredentialRepository) FindByRoomNum(ctx context.Context, roomNum string) (*domain.RoomCredential, error) {
	args := m.Called(ctx, roomNum)
	var cred *domain.RoomCredential
	if args.Get(0) != nil {
		cred = args.Get(0).(*domain.RoomCredential)
	}
	return cred, args.Error(1)
}

func (m *RoomCredentialRepository) Save(ctx context.Context, cred *domain.RoomCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}
