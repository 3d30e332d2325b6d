package risk

import "time"

// Clock 抽象时间便于测试（缓存 TTL、期货日夜盘判定都依赖它）。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// WallClock is the default real-time clock.
var WallClock Clock = realClock{}
