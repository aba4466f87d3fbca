// Package overrides adapts the data and statistics libraries for reviewed runs: frames get provenance
// and mutation gating, statistics results get their significance values tagged.
package overrides

import "encoding/gob"

func init() {
	gob.Register(new(FrameOverride))
	gob.Register(new(StatsOverride))
}
