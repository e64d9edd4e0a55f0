// Package domain 定义了应用程序的持久化数据模型。
package domain

import "time"

// RoomCredential 表示一个房间的持久化访问凭证。
// 每个房间号只有一条记录，Password 字段存储的是 bcrypt 哈希，
// 服务端永远不会保存明文密码。
type RoomCredential struct {
	ID        uint      `gorm:"primaryKey"`                                         // 凭证记录唯一标识符 (主键)
	RoomNum   string    `gorm:"type:varchar(191);uniqueIndex:idx_roomnum;not null"` // 房间号，全局唯一
	Password  string    `gorm:"type:text;not null"`                                 // 存储的是哈希后的房间密码
	CreatedAt time.Time `gorm:"autoCreateTime"`                                     // 记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime"`                                     // 记录最后更新时间 (GORM 自动填充)
}

// HasPassword 判断该凭证是否要求密码。
// 房间号格式由前端约束 (LLLL-LLLL-DDDD)，服务端不做任何假设。
func (c *RoomCredential) HasPassword() bool {
	return c.Password != ""
}
