package server

// PlayerID 连接时分配的客户端编号，从 1 开始递增，永不复用
type PlayerID int

// NoExclude 广播时不排除任何会话
const NoExclude PlayerID = 0

// Vec2 二维坐标（屏幕坐标系，y 向下）
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Direction 子弹的八个离散飞行方向
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
	DirTopRight
	DirTopLeft
	DirBottomRight
	DirBottomLeft
)

// Player 世界中的玩家（服务端权威状态）
type Player struct {
	ID    PlayerID `json:"id"`
	Pos   Vec2     `json:"pos"`
	Score int      `json:"score"`
}

// Projectile 一颗在飞的子弹；Owner 可能已经断开
type Projectile struct {
	Owner  PlayerID
	Pos    Vec2
	Dir    Direction
	Speed  float64
	Radius float64
}

// Hit 一次命中：Owner 击中 Victim
type Hit struct {
	Owner  PlayerID
	Victim PlayerID
}
