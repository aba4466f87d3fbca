package modes

type Mode uint8

const (
	ModeProduction Mode = iota + 1
	ModeDevelopment
)

func (m Mode) String() string {
	switch m {
	case ModeProduction:
		return "production"
	case ModeDevelopment:
		return "development"
	}
	return "unknown"
}

// OutOfProcess reports whether sandboxed runs should default to one OS process per run.
func (m Mode) OutOfProcess() bool {
	return m == ModeProduction
}
