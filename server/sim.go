package server

// unit 返回方向对应的位移单位向量。斜向两轴都取 1（不做归一化），
// 斜向飞行因此比轴向更快，客户端依赖这一点。
func (d Direction) unit() Vec2 {
	switch d {
	case DirUp:
		return Vec2{0, -1}
	case DirDown:
		return Vec2{0, 1}
	case DirLeft:
		return Vec2{-1, 0}
	case DirRight:
		return Vec2{1, 0}
	case DirTopRight:
		return Vec2{1, -1}
	case DirTopLeft:
		return Vec2{-1, -1}
	case DirBottomRight:
		return Vec2{1, 1}
	case DirBottomLeft:
		return Vec2{-1, 1}
	default:
		return Vec2{}
	}
}

// advance 按方向、速度与经过时间 dt（秒）推进子弹
func (p *Projectile) advance(dt float64) {
	u := p.Dir.unit()
	p.Pos.X += u.X * p.Speed * dt
	p.Pos.Y += u.Y * p.Speed * dt
}

// circlesCollide 圆心距离 <= 半径之和即视为碰撞（边界相切也算）
func circlesCollide(a Vec2, ra float64, b Vec2, rb float64) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	r := ra + rb
	return dx*dx+dy*dy <= r*r
}

// outOfBounds 任一轴越出 [0,w]x[0,h] 即为越界
func outOfBounds(p Vec2, w, h float64) bool {
	return p.X < 0 || p.X > w || p.Y < 0 || p.Y > h
}
