package gateway

// State 是单个连接的会话状态
type State int

const (
	StateUnauthenticated State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 记录连接加入房间后的身份
type Session struct {
	ConnID      string
	State       State
	RoomID      string
	SeatID      string
	DisplayName string
	SeatToken   string
	IsHost      bool
}

// sender 返回聊天消息的 from 字段
func (s Session) sender() string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.SeatID != "":
		return s.SeatID
	default:
		return s.ConnID
	}
}

func (s *Session) reset() {
	s.State = StateUnauthenticated
	s.RoomID = ""
	s.SeatID = ""
	s.DisplayName = ""
	s.SeatToken = ""
	s.IsHost = false
}
