package tasks

import (
	"encoding/json"
	"time"
)

// 定义任务类型常量
const (
	// TypeRoomSweep 清理已预留但长期无人加入的空房间
	TypeRoomSweep = "room:sweep"
)

// RoomSweepPayload 定义房间清扫任务的数据结构
type RoomSweepPayload struct {
	// Retention 是空房间的保留窗口：创建时间早于该窗口且
	// 成员为空的房间会被删除
	Retention time.Duration `json:"retention"`
}

// NewRoomSweepTask 创建一个新的房间清扫任务 payload
func NewRoomSweepTask(retention time.Duration) ([]byte, error) {
	payload := RoomSweepPayload{Retention: retention}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}
