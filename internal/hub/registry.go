package hub

import "time"

// 成员加入时的默认外观 (与原始前端约定一致)
const (
	defaultMemberColor = "#5eb3d6"
	defaultMemberName  = "Player"
)

// Member 是一个连接在某个房间内的在场记录。
// 由其所属的 Room 独占持有，连接离开或掉线时销毁。
type Member struct {
	ConnID    string // 服务端分配的连接标识，连接生命周期内稳定
	Name      string // 显示名，不保证唯一
	Color     string // 当前画笔颜色
	IsDrawing bool   // 仅在 draw-start 和对应的 draw-end/断开之间为 true
}

// Room 是一个活跃的协作会话。
// 成员映射为空的 Room 不应继续留在 Registry 里 (空房间立即删除，
// 只有通过 /verify 预留、尚未有人加入的房间例外，由定期清扫兜底)。
type Room struct {
	ID      string
	Created time.Time
	Members map[string]*Member // connID -> Member
}

// Registry 维护 roomID 到活跃房间状态的进程内映射，
// 以及 connID 到其所在房间的反向关系，使断开清理的代价
// 只与该连接加入过的房间数成正比。
//
// Registry 只被 hub 事件循环这一个 goroutine 读写，
// 因此不加锁；任何其他 goroutine 都不得直接访问它。
type Registry struct {
	rooms map[string]*Room               // roomID -> Room，同一标识至多一个条目
	conns map[string]map[string]struct{} // connID -> 它加入的 roomID 集合
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		conns: make(map[string]map[string]struct{}),
	}
}

// Get 返回指定房间，不存在时返回 nil。
func (r *Registry) Get(roomID string) *Room {
	return r.rooms[roomID]
}

// CreateOrGet 返回指定房间，不存在时创建空房间。
func (r *Registry) CreateOrGet(roomID string) *Room {
	if room, ok := r.rooms[roomID]; ok {
		return room
	}
	room := &Room{
		ID:      roomID,
		Created: time.Now(),
		Members: make(map[string]*Member),
	}
	r.rooms[roomID] = room
	return room
}

// AddMember 把成员插入房间并维护反向关系。房间必须已存在。
func (r *Registry) AddMember(roomID string, m *Member) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	room.Members[m.ConnID] = m
	set, ok := r.conns[m.ConnID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[m.ConnID] = set
	}
	set[roomID] = struct{}{}
}

// Member 返回连接在房间内的成员记录，任一一侧不存在时返回 nil。
func (r *Registry) Member(roomID, connID string) *Member {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return room.Members[connID]
}

// RemoveMember 把成员从房间移除并维护反向关系。
func (r *Registry) RemoveMember(roomID, connID string) {
	if room, ok := r.rooms[roomID]; ok {
		delete(room.Members, connID)
	}
	if set, ok := r.conns[connID]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.conns, connID)
		}
	}
}

// RemoveIfEmpty 删除成员映射为空的房间，返回是否删除。
func (r *Registry) RemoveIfEmpty(roomID string) bool {
	room, ok := r.rooms[roomID]
	if !ok || len(room.Members) > 0 {
		return false
	}
	delete(r.rooms, roomID)
	return true
}

// RoomsOf 返回连接当前加入的所有房间 ID。
func (r *Registry) RoomsOf(connID string) []string {
	set, ok := r.conns[connID]
	if !ok {
		return nil
	}
	roomIDs := make([]string, 0, len(set))
	for roomID := range set {
		roomIDs = append(roomIDs, roomID)
	}
	return roomIDs
}

// SweepIdle 删除成员为空且创建时间早于 retention 的房间，
// 返回删除数量。覆盖那些通过 /verify 预留但从未有人加入的房间。
func (r *Registry) SweepIdle(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	removed := 0
	for roomID, room := range r.rooms {
		if len(room.Members) == 0 && room.Created.Before(cutoff) {
			delete(r.rooms, roomID)
			removed++
		}
	}
	return removed
}

// MemberInfos 返回房间成员的公开视图，供准入和加入广播使用。
func (r *Registry) MemberInfos(roomID string) []MemberInfo {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	infos := make([]MemberInfo, 0, len(room.Members))
	for _, m := range room.Members {
		infos = append(infos, MemberInfo{
			ID:        m.ConnID,
			Name:      m.Name,
			Color:     m.Color,
			IsDrawing: m.IsDrawing,
		})
	}
	return infos
}
