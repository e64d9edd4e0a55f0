package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// 连接标识由服务端分配，在连接生命周期内稳定；传输层重连会产生
// 新的 Client，必须重新走完整的认证流程。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string      // 服务端分配的连接标识 (uuid)
	send chan []byte // 向此客户端发送消息的缓冲通道，由 Hub 在断开清理时关闭
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, 256),
	}
}

// ID 返回服务端分配的连接标识。
func (c *Client) ID() string { return c.id }

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// CloseConn 直接关闭底层连接。
func (c *Client) CloseConn() { c.conn.Close() }

// deliver 把一条通知编码后非阻塞地放入该客户端的发送队列。
// 在认证拒绝路径上由读 goroutine 调用，其余时候由 Hub 循环调用。
func (c *Client) deliver(eventType string, payload interface{}) {
	message, err := encodeNotification(eventType, payload)
	if err != nil {
		logrus.WithError(err).WithField("conn_id", c.id).Error("Failed to encode notification")
		return
	}
	select {
	case c.send <- message:
	default:
		logrus.WithField("conn_id", c.id).Warn("Client send channel full, dropping notification")
	}
}

// ReadPump 把消息从 WebSocket 连接泵送到 Hub。
// 它在自己的 goroutine 中运行；退出时触发断开清理。
func (c *Client) ReadPump() {
	defer func() {
		// 清理操作：请求 Hub 把此连接从所有房间移除
		select {
		case c.hub.commands <- disconnectCmd{client: c}:
		case <-time.After(1 * time.Second):
			logrus.WithField("conn_id", c.id).Warn("Timeout sending disconnect command to Hub channel")
		}
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("ReadPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("conn_id", c.id)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		cmd, err := DecodeClientMessage(message)
		if err != nil {
			// 畸形或未知事件静默丢弃，不反馈给发送方
			logrus.WithField("conn_id", c.id).WithError(err).Debug("Dropping undecodable client message")
			continue
		}

		if auth, ok := cmd.(*AuthCommand); ok {
			// 认证的凭证库调用在本 goroutine 上执行，后续事件
			// 要等它返回才会被读取，同一连接的顺序因此保持不变。
			c.hub.authenticate(context.Background(), c, auth)
			continue
		}

		if !c.hub.enqueue(relayCmd{client: c, msg: cmd}) {
			logrus.WithField("conn_id", c.id).Warn("Hub command channel full, dropping client event")
		}
	}
}

// WritePump 把消息从发送队列泵送到 WebSocket 连接，
// 并定期发送 Ping 以检测断开。它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("WritePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 在断开清理时关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
