package quantiles

import "fmt"

// DebugString renders a human-readable summary of the sketch's bookkeeping
// fields, mirroring PreambleUtil.preambleToString's diagnostic role: it has
// no effect on sketch behavior.
func (s *Sketch) DebugString() string {
	return fmt.Sprintf(
		"Sketch: k=%d n=%d bitPattern=%b minValue=%g maxValue=%g levels=%d",
		s.k, s.n, s.bitPattern, s.minValue, s.maxValue, len(s.levels),
	)
}
