package hub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Slink21Taken/InspiraShare/internal/service"
)

// command 是 hub 事件循环的内部命令集合，穷尽匹配于 Run。
type command interface {
	isCommand()
}

// joinCmd 在凭证校验通过后请求把连接准入房间。
// requireLive 为 true 表示没有持久化凭证，准入要求 Registry 中
// 已存在同名活跃房间 (纯内存房间路径)。
type joinCmd struct {
	client      *Client
	room        string
	name        string
	requireLive bool
}

// relayCmd 携带一条已认证连接的转发类事件 (chat/draw/sticky)。
type relayCmd struct {
	client *Client
	msg    ClientCommand
}

// disconnectCmd 表示连接已在传输层断开。
type disconnectCmd struct {
	client *Client
}

// reserveCmd 在 /verify 成功后预创建活跃房间 (原实现的行为)。
type reserveCmd struct {
	room string
}

// sweepCmd 请求清理空置超过 retention 的房间。
// done 非 nil 时收到删除数量，供 worker 记录和测试同步。
type sweepCmd struct {
	retention time.Duration
	done      chan int
}

func (joinCmd) isCommand()       {}
func (relayCmd) isCommand()      {}
func (disconnectCmd) isCommand() {}
func (reserveCmd) isCommand()    {}
func (sweepCmd) isCommand()      {}

// Hub 拥有 Room Registry 并串行处理所有连接事件。
// 单一事件循环意味着 "检查" 和 "变更" 之间不存在交错；唯一的
// 挂起点是认证时的凭证库调用，它发生在连接自己的读 goroutine 上，
// 相关的 Registry 检查在命令回到循环后重新执行。
type Hub struct {
	commands chan command
	registry *Registry
	clients  map[string]*Client // connID -> Client，仅事件循环访问
	authSvc  *service.SessionAuthService
	quit     chan struct{}
	done     chan struct{}
}

// NewHub 创建 Hub 实例。
func NewHub(authSvc *service.SessionAuthService) *Hub {
	if authSvc == nil {
		panic("SessionAuthService cannot be nil for Hub")
	}
	return &Hub{
		commands: make(chan command, 512),
		registry: NewRegistry(),
		clients:  make(map[string]*Client),
		authSvc:  authSvc,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run 启动 Hub 的主事件循环，应在单独的 goroutine 中运行。
// 所有命令都在循环内就地处理：同一连接的事件按接收顺序转发，
// 不同连接之间只做尽力而为的交错 (协作画布允许 last-writer-wins)。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case cmd := <-h.commands:
			switch c := cmd.(type) {
			case joinCmd:
				h.handleJoin(c)
			case relayCmd:
				h.handleRelay(c)
			case disconnectCmd:
				h.handleDisconnect(c)
			case reserveCmd:
				h.registry.CreateOrGet(c.room)
			case sweepCmd:
				removed := h.registry.SweepIdle(c.retention)
				if removed > 0 {
					log.WithField("removed", removed).Info("Idle room sweep completed")
				}
				if c.done != nil {
					c.done <- removed
				}
			}
		case <-h.quit:
			close(h.done)
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 停止事件循环并等待它退出。命令通道保持打开，
// 迟到的入队 (比如还在收尾的连接) 只会留在缓冲里被丢弃。
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}

// enqueue 将命令放入处理队列 (非阻塞)。
// 返回 false 表示队列已满，命令被丢弃。
func (h *Hub) enqueue(cmd command) bool {
	select {
	case h.commands <- cmd:
		return true
	default:
		logrus.WithField("component", "hub").Warn("Hub command channel full, dropping command")
		return false
	}
}

// ReserveRoom 在 /verify 成功后预留活跃房间。
// 从 HTTP handler 的 goroutine 调用，实际创建发生在事件循环上。
func (h *Hub) ReserveRoom(roomID string) {
	h.enqueue(reserveCmd{room: roomID})
}

// SweepIdleRooms 触发一次空房间清扫并返回删除数量。
// 从 worker goroutine 调用；通过 done 通道与事件循环同步。
func (h *Hub) SweepIdleRooms(retention time.Duration) int {
	done := make(chan int, 1)
	if !h.enqueue(sweepCmd{retention: retention, done: done}) {
		return 0
	}
	select {
	case removed := <-done:
		return removed
	case <-h.done:
		// Hub 已停止，清扫不再有意义
		return 0
	}
}

// authenticate 在连接的读 goroutine 上执行认证的凭证库一侧，
// 然后把准入决定交回事件循环。拒绝只发给这一个连接，不产生
// 任何状态变更和广播。
func (h *Hub) authenticate(ctx context.Context, client *Client, cmd *AuthCommand) {
	verdict, reject := h.authSvc.CheckCredential(ctx, cmd.Room, cmd.Password)
	if reject != "" {
		client.deliver(evtAuthFailed, AuthFailedPayload{Reason: string(reject)})
		return
	}
	h.enqueue(joinCmd{
		client:      client,
		room:        cmd.Room,
		name:        cmd.Name,
		requireLive: !verdict.RecordExists,
	})
}

// handleJoin 完成准入：重新检查房间活跃性 (凭证库调用之后的
// 不变量必须在循环上复核)，插入成员，并触发两条通知。
func (h *Hub) handleJoin(c joinCmd) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": c.room,
		"conn_id": c.client.ID(),
	})

	room := h.registry.Get(c.room)
	if room == nil {
		if c.requireLive {
			// 既没有持久化凭证也没有活跃房间
			c.client.deliver(evtAuthFailed, AuthFailedPayload{Reason: string(service.RejectNotFound)})
			logCtx.Warn("Join rejected: room not found")
			return
		}
		// 持久化房间的首次加入 (或重启后的重建)，懒加载进 Registry
		room = h.registry.CreateOrGet(c.room)
		logCtx.Info("Live room created from persisted credential")
	}

	name := c.name
	if name == "" {
		name = defaultMemberName
	}
	member := &Member{
		ConnID: c.client.ID(),
		Name:   name,
		Color:  defaultMemberColor,
	}
	h.registry.AddMember(room.ID, member)
	h.clients[c.client.ID()] = c.client

	users := h.registry.MemberInfos(room.ID)
	c.client.deliver(evtAuthSuccess, AuthSuccessPayload{Users: users})
	h.broadcast(room.ID, c.client.ID(), evtUserConnected, UserConnectedPayload{Name: name, Users: users})
	logCtx.WithField("member_count", len(users)).Info("Client joined room")
}

// handleRelay 按事件类型转发。所有前置条件失败都静默丢弃：
// 来自已离开连接的迟到事件不应让房间崩溃或失步。
func (h *Hub) handleRelay(c relayCmd) {
	connID := c.client.ID()

	switch msg := c.msg.(type) {
	case *ChatCommand:
		m := h.registry.Member(msg.Room, connID)
		if m == nil {
			return
		}
		h.broadcast(msg.Room, "", evtChatMessage, ChatMessagePayload{
			Name:      m.Name,
			Message:   msg.Message,
			Timestamp: time.Now().UnixMilli(),
		})

	case *DrawStartCommand:
		m := h.registry.Member(msg.Room, connID)
		if m == nil {
			return
		}
		m.IsDrawing = true
		m.Color = msg.Color
		h.broadcast(msg.Room, connID, evtUserDrawStart, UserDrawStartPayload{
			X: msg.X, Y: msg.Y, Color: msg.Color, UserID: connID,
		})

	case *DrawMoveCommand:
		m := h.registry.Member(msg.Room, connID)
		if m == nil || !m.IsDrawing {
			return
		}
		h.broadcast(msg.Room, connID, evtUserDrawMove, UserDrawMovePayload{
			X: msg.X, Y: msg.Y, UserID: connID,
		})

	case *DrawEndCommand:
		m := h.registry.Member(msg.Room, connID)
		if m == nil {
			return
		}
		m.IsDrawing = false
		h.broadcast(msg.Room, connID, evtUserDrawEnd, UserDrawEndPayload{UserID: connID})

	case *StickyCommand:
		m := h.registry.Member(msg.Room, connID)
		if m == nil {
			return
		}
		h.broadcast(msg.Room, connID, evtStickyNoteAdded, StickyNoteAddedPayload{
			Text:   msg.Note.Text,
			X:      msg.Note.X,
			Y:      msg.Note.Y,
			Color:  msg.Note.Color,
			Author: m.Name,
		})

	default:
		// AuthCommand 在读 goroutine 上处理，不应出现在这里
		logrus.WithField("conn_id", connID).Warnf("Hub: unexpected relay command type %T", c.msg)
	}
}

// handleDisconnect 把连接从它加入的每个房间移除，通知剩余成员，
// 并立即删除变空的房间。
func (h *Hub) handleDisconnect(c disconnectCmd) {
	connID := c.client.ID()
	logCtx := logrus.WithField("conn_id", connID)

	for _, roomID := range h.registry.RoomsOf(connID) {
		m := h.registry.Member(roomID, connID)
		if m == nil {
			continue
		}
		h.registry.RemoveMember(roomID, connID)
		h.broadcast(roomID, "", evtUserDisconnected, UserDisconnectedPayload{
			Name:   m.Name,
			UserID: connID,
		})
		if h.registry.RemoveIfEmpty(roomID) {
			logCtx.WithField("room_id", roomID).Info("Room empty, removed from registry")
		}
	}

	delete(h.clients, connID)
	// disconnectCmd 对每个连接只会入队一次 (ReadPump 的 defer)，
	// 这里是唯一关闭 send 通道的地方，未认证的连接也要结束 WritePump。
	close(c.client.send)
	logCtx.Info("Client disconnected and cleaned up")
}

// broadcast 把通知发给房间内除 exceptConnID 以外的所有成员。
// exceptConnID 为空串时发给全部成员。单个慢客户端不会阻塞循环：
// 发送通道满时丢弃该客户端的这条消息。
func (h *Hub) broadcast(roomID, exceptConnID, eventType string, payload interface{}) {
	room := h.registry.Get(roomID)
	if room == nil {
		return
	}
	message, err := encodeNotification(eventType, payload)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to encode broadcast")
		return
	}
	for connID := range room.Members {
		if connID == exceptConnID {
			continue
		}
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id":  roomID,
				"receiver": connID,
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}
