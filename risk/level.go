// Package risk holds the risk classification shared by the margin,
// futures and options calculators.
package risk

// Level 四级风险分类，由比率对阈值比较得出，永远重新计算、不落盘。
type Level string

const (
	Safe     Level = "safe"
	Caution  Level = "caution"
	Danger   Level = "danger"
	Critical Level = "critical"
)

// Classify maps a ratio (in percent) onto a Level given three descending
// thresholds: v >= safe → Safe, v >= caution → Caution, v >= danger →
// Danger, otherwise Critical.
func Classify(v, safe, caution, danger float64) Level {
	switch {
	case v >= safe:
		return Safe
	case v >= caution:
		return Caution
	case v >= danger:
		return Danger
	default:
		return Critical
	}
}

// Severity orders levels for "pick the worse of two" comparisons in
// stress tables.
func Severity(l Level) int {
	switch l {
	case Safe:
		return 0
	case Caution:
		return 1
	case Danger:
		return 2
	default:
		return 3
	}
}
