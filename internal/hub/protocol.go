package hub

import (
	"encoding/json"
	"fmt"
)

// 入站事件名 (与前端协议一致)
const (
	evtAuth      = "auth"
	evtChat      = "send-chat-message"
	evtDrawStart = "draw-start"
	evtDrawMove  = "draw-move"
	evtDrawEnd   = "draw-end"
	evtSticky    = "add-sticky-note"
)

// 出站事件名
const (
	evtAuthSuccess      = "auth-success"
	evtAuthFailed       = "auth-failed"
	evtChatMessage      = "chat-message"
	evtUserConnected    = "user-connected"
	evtUserDrawStart    = "user-draw-start"
	evtUserDrawMove     = "user-draw-move"
	evtUserDrawEnd      = "user-draw-end"
	evtStickyNoteAdded  = "sticky-note-added"
	evtUserDisconnected = "user-disconnected"
)

// ClientCommand 是入站命令的封闭集合。
// 每种线上事件对应一个具体类型，hub 对其做穷尽匹配，
// 新增事件必须同时修改 decode 和 dispatch，否则无法编译通过。
type ClientCommand interface {
	isClientCommand()
}

// AuthCommand 请求把连接认证进一个房间。
type AuthCommand struct {
	Room     string `json:"room"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ChatCommand 在房间内发送一条聊天消息。
type ChatCommand struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// DrawStartCommand 开始一段笔画。
type DrawStartCommand struct {
	Room  string  `json:"room"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// DrawMoveCommand 延续当前笔画。
type DrawMoveCommand struct {
	Room string  `json:"room"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// DrawEndCommand 结束当前笔画。
type DrawEndCommand struct {
	Room string `json:"room"`
}

// StickyNote 是一张便签的内容。
type StickyNote struct {
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// StickyCommand 在房间内添加一张便签。
type StickyCommand struct {
	Room string     `json:"room"`
	Note StickyNote `json:"note"`
}

func (AuthCommand) isClientCommand()      {}
func (ChatCommand) isClientCommand()      {}
func (DrawStartCommand) isClientCommand() {}
func (DrawMoveCommand) isClientCommand()  {}
func (DrawEndCommand) isClientCommand()   {}
func (StickyCommand) isClientCommand()    {}

// clientEnvelope 是入站消息的外层信封：类型标签加原始负载。
type clientEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeClientMessage 把一条原始 WebSocket 文本消息解码为类型化命令。
// 未知的事件类型和畸形负载都返回错误，由调用方静默丢弃。
func DecodeClientMessage(raw []byte) (ClientCommand, error) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: malformed envelope: %w", err)
	}

	decode := func(v ClientCommand) (ClientCommand, error) {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return nil, fmt.Errorf("protocol: malformed %s payload: %w", env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case evtAuth:
		return decode(&AuthCommand{})
	case evtChat:
		return decode(&ChatCommand{})
	case evtDrawStart:
		return decode(&DrawStartCommand{})
	case evtDrawMove:
		return decode(&DrawMoveCommand{})
	case evtDrawEnd:
		return decode(&DrawEndCommand{})
	case evtSticky:
		return decode(&StickyCommand{})
	default:
		return nil, fmt.Errorf("protocol: unknown event type %q", env.Type)
	}
}

// --- 出站通知 ---

// MemberInfo 是成员在出站消息里的公开视图。
type MemberInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsDrawing bool   `json:"isDrawing"`
}

// AuthSuccessPayload 只发给刚被准入的连接。
type AuthSuccessPayload struct {
	Users []MemberInfo `json:"users"`
}

// AuthFailedPayload 只发给被拒绝的连接，绝不广播。
type AuthFailedPayload struct {
	Reason string `json:"reason"`
}

// ChatMessagePayload 带服务端时间戳 (毫秒) 的聊天广播。
type ChatMessagePayload struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// UserConnectedPayload 通知房间其他成员有人加入。
type UserConnectedPayload struct {
	Name  string       `json:"name"`
	Users []MemberInfo `json:"users"`
}

type UserDrawStartPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	UserID string  `json:"userId"`
}

type UserDrawMovePayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"userId"`
}

type UserDrawEndPayload struct {
	UserID string `json:"userId"`
}

// StickyNoteAddedPayload 把便签连同作者名转发给房间其他成员。
type StickyNoteAddedPayload struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	Author string  `json:"author"`
}

type UserDisconnectedPayload struct {
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

// serverEnvelope 是出站消息的外层信封。
type serverEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// encodeNotification 把一条出站通知编码为线上格式。
func encodeNotification(eventType string, payload interface{}) ([]byte, error) {
	bytes, err := json.Marshal(serverEnvelope{Type: eventType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %s notification: %w", eventType, err)
	}
	return bytes, nil
}
