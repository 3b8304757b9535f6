package traffic

import (
	"fmt"
	"math"
	"strings"
)

// 拥堵等级，按严重程度递增排序；Closed为封闭哨兵值，不参与平均
type Level int

const (
	FreeFlow Level = iota
	Light
	Moderate
	Heavy
	VeryHeavy
	Closed
)

var (
	levelValues  = [...]float64{0, 0.2, 0.4, 0.7, 1.0, -1}
	levelNames   = [...]string{"FREE_FLOW", "LIGHT", "MODERATE", "HEAVY", "VERY_HEAVY", "CLOSED"}
	speedFactors = [...]float64{1.0, 0.8, 0.6, 0.4, 0.2, 0}
)

// 等级对应的拥堵数值，Closed为-1
func (l Level) Value() float64 {
	if l < FreeFlow || l > Closed {
		return 0
	}
	return levelValues[l]
}

// 相对限速的速度折减系数
func (l Level) SpeedFactor() float64 {
	if l < FreeFlow || l > Closed {
		return 1
	}
	return speedFactors[l]
}

func (l Level) String() string {
	if l < FreeFlow || l > Closed {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, n := range levelNames {
		if n == name {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("unknown traffic level %q", text)
}

// 数值转等级：负数视为封闭，否则取数值不超过v的最高等级
func LevelFromValue(v float64) Level {
	if v < 0 {
		return Closed
	}
	level := FreeFlow
	for l := Light; l <= VeryHeavy; l++ {
		if levelValues[l] <= v+1e-9 {
			level = l
		}
	}
	return level
}

// 按严重程度（1~3）升级后的目标等级
func severityLevel(severity int) Level {
	switch {
	case severity >= 3:
		return VeryHeavy
	case severity == 2:
		return Heavy
	default:
		return Moderate
	}
}

// 事件结束后按严重程度衰减，而不是立刻恢复畅通
func decayed(l Level, severity int) Level {
	v := l.Value()
	if l == Closed {
		v = levelValues[VeryHeavy]
	}
	return LevelFromValue(math.Max(0, v-0.2*float64(severity)))
}
