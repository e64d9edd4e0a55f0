package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Slink21Taken/InspiraShare/internal/hub"
	"github.com/Slink21Taken/InspiraShare/internal/tasks"
)

// RoomSweepHandler 处理空房间清扫任务。
// 实际的删除发生在 hub 事件循环上，worker 只负责触发和记录。
type RoomSweepHandler struct {
	hub *hub.Hub
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(h *hub.Hub) *RoomSweepHandler {
	if h == nil {
		panic("Hub cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{hub: h}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.RoomSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = time.Hour
	}

	removed := h.hub.SweepIdleRooms(payload.Retention)
	logCtx.WithFields(logrus.Fields{
		"retention": payload.Retention.String(),
		"removed":   removed,
	}).Info("Room sweep task processed")
	return nil
}
