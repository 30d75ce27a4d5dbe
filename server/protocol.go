package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 协议：每条消息一行文本，以 '\n' 结尾，字段以空白分隔。
//
//	server→client  Client_ID <id>
//	client→server  Position <x>, <y>
//	client→server  Shot <x> <y> <speed> <direction>
//	server→all     Bullet <x> <y> <direction> <speed> <radius>
//	server→all     Hit <owner_id> <victim_id>
//	server→others  Player <id> joined / Player <id> left
//	server→others  Client <id>: <original line>

var (
	ErrEmptyLine        = errors.New("empty line")
	ErrMalformed        = errors.New("malformed message")
	ErrUnknownDirection = errors.New("unknown direction")
)

var dirTokens = map[string]Direction{
	"up":           DirUp,
	"down":         DirDown,
	"left":         DirLeft,
	"right":        DirRight,
	"top_right":    DirTopRight,
	"top_left":     DirTopLeft,
	"bottom_right": DirBottomRight,
	"bottom_left":  DirBottomLeft,
}

// ParseDirection 将方向词转换为 Direction，词表外的一律拒绝
func ParseDirection(tok string) (Direction, error) {
	d, ok := dirTokens[tok]
	if !ok {
		return DirNone, fmt.Errorf("%w: %q", ErrUnknownDirection, tok)
	}
	return d, nil
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirTopRight:
		return "top_right"
	case DirTopLeft:
		return "top_left"
	case DirBottomRight:
		return "bottom_right"
	case DirBottomLeft:
		return "bottom_left"
	default:
		return "none"
	}
}

// MsgKind 入站消息类型
type MsgKind int

const (
	MsgRelay MsgKind = iota // 未识别的消息，原样转发
	MsgPosition
	MsgShot
)

// Message 解码后的入站消息
type Message struct {
	Kind  MsgKind
	Pos   Vec2
	Speed float64
	Dir   Direction
	Raw   string // 去掉行尾 '\r' 后的原始行
}

// ParseLine 严格解析一行入站消息。Position/Shot 字段不合法时返回 ErrMalformed，
// 不做任何“尽量修复”；其他非空行返回 MsgRelay。
func ParseLine(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Message{}, ErrEmptyLine
	}
	switch fields[0] {
	case "Position":
		return parsePosition(line, fields)
	case "Shot":
		return parseShot(line, fields)
	default:
		return Message{Kind: MsgRelay, Raw: line}, nil
	}
}

// Position <x>, <y>
func parsePosition(line string, fields []string) (Message, error) {
	if len(fields) != 3 {
		return Message{}, fmt.Errorf("%w: position wants 2 fields, got %d", ErrMalformed, len(fields)-1)
	}
	xs, ok := strings.CutSuffix(fields[1], ",")
	if !ok {
		return Message{}, fmt.Errorf("%w: position x %q missing comma", ErrMalformed, fields[1])
	}
	x, err := parseFinite(xs)
	if err != nil {
		return Message{}, err
	}
	y, err := parseFinite(fields[2])
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: MsgPosition, Pos: Vec2{X: x, Y: y}, Raw: line}, nil
}

// Shot <x> <y> <speed> <direction>
func parseShot(line string, fields []string) (Message, error) {
	if len(fields) != 5 {
		return Message{}, fmt.Errorf("%w: shot wants 4 fields, got %d", ErrMalformed, len(fields)-1)
	}
	var nums [3]float64
	for i := range nums {
		v, err := parseFinite(fields[i+1])
		if err != nil {
			return Message{}, err
		}
		nums[i] = v
	}
	dir, err := ParseDirection(fields[4])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Message{
		Kind:  MsgShot,
		Pos:   Vec2{X: nums[0], Y: nums[1]},
		Speed: nums[2],
		Dir:   dir,
		Raw:   line,
	}, nil
}

func parseFinite(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrMalformed, tok)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite number %q", ErrMalformed, tok)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func FormatClientID(id PlayerID) string { return fmt.Sprintf("Client_ID %d", id) }
func FormatJoined(id PlayerID) string   { return fmt.Sprintf("Player %d joined", id) }
func FormatLeft(id PlayerID) string     { return fmt.Sprintf("Player %d left", id) }
func FormatHit(h Hit) string            { return fmt.Sprintf("Hit %d %d", h.Owner, h.Victim) }

// FormatRelay 转发格式：Client <id>: <原始行>
func FormatRelay(id PlayerID, line string) string {
	return fmt.Sprintf("Client %d: %s", id, line)
}

// FormatBullet 子弹快照：Bullet <x> <y> <direction> <speed> <radius>
func FormatBullet(p Projectile) string {
	return "Bullet " + formatFloat(p.Pos.X) + " " + formatFloat(p.Pos.Y) + " " +
		p.Dir.String() + " " + formatFloat(p.Speed) + " " + formatFloat(p.Radius)
}

// FormatPosition 客户端上报位置（客户端与测试使用）
func FormatPosition(pos Vec2) string {
	return "Position " + formatFloat(pos.X) + ", " + formatFloat(pos.Y)
}

// FormatShot 客户端开火（客户端与测试使用）
func FormatShot(pos Vec2, speed float64, dir Direction) string {
	return "Shot " + formatFloat(pos.X) + " " + formatFloat(pos.Y) + " " +
		formatFloat(speed) + " " + dir.String()
}
