package sandbox

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"maps"
	"slices"
	"time"

	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/overrides"
)

// ModuleFile is the name submitted code is saved and run as.
const ModuleFile = "gpt_code.star"

// placeholder is left in ModuleFile between runs.
const placeholder = "# no code is loaded\n"

// Settings configure one run. They cross process boundaries and must stay gob-encodable.
type Settings struct {
	Dir     string
	Timeout time.Duration

	ForbiddenCalls   []guards.ForbiddenCall
	ForbiddenImports []string
	// ReadAllow patterns default to every file in the run directory.
	ReadAllow []string
	// WriteAllow patterns default to the requirement patterns.
	WriteAllow  []string
	SystemAllow []string
	Warnings    map[string]guards.WarningAction
	// WarningDefault applies to categories without a rule.
	WarningDefault guards.WarningAction

	MutationPolicy       overrides.MutationPolicy
	EnforceSavingAltered bool
	FloatDigits          int
	UnpackPrevention     overrides.UnpackPrevention

	// Digits is the significant digits display items are rendered with.
	Digits       int
	Requirements Requirements
	// StrictRequirements fails runs that create fewer files than required.
	StrictRequirements bool
}

var DefaultForbiddenImports = []string{"os", "subprocess", "sys"}

func DefaultSettings(dir string) Settings {
	return Settings{
		Dir:              dir,
		Timeout:          time.Minute,
		ForbiddenCalls:   slices.Clone(guards.DefaultForbiddenCalls),
		ForbiddenImports: slices.Clone(DefaultForbiddenImports),
		WarningDefault:   guards.WarningIssue,
		MutationPolicy:   overrides.AllowUnlessFromFile,
		UnpackPrevention: overrides.UnpackWarn,
		FloatDigits:      4,
		Digits:           3,
	}
}

func (s Settings) writeAllow() []string {
	if len(s.WriteAllow) > 0 {
		return s.WriteAllow
	}
	return s.Requirements.Patterns()
}

func (s Settings) readAllow() []string {
	if len(s.ReadAllow) > 0 {
		return s.ReadAllow
	}
	return []string{"**"}
}

// Stack returns the guards of a run in the order they are entered.
func (s Settings) Stack() guards.Stack {
	return guards.Stack{
		&guards.ChdirGuard{
			Dir: s.Dir,
		},
		&guards.TimeoutGuard{
			Timeout: s.Timeout,
		},
		&guards.FileGuard{
			ReadAllow:   s.readAllow(),
			WriteAllow:  s.writeAllow(),
			SystemAllow: s.SystemAllow,
		},
		&guards.ImportGuard{
			Forbidden: s.ForbiddenImports,
		},
		&guards.CallGuard{
			Forbidden: s.ForbiddenCalls,
		},
		&guards.WarningGuard{
			Rules:   maps.Clone(s.Warnings),
			Default: s.WarningDefault,
		},
		&overrides.FrameOverride{
			MutationPolicy:       s.MutationPolicy,
			EnforceSavingAltered: s.EnforceSavingAltered,
			FloatDigits:          s.FloatDigits,
		},
		&overrides.StatsOverride{
			UnpackPrevention: s.UnpackPrevention,
		},
	}
}

// Hash identifies the settings in cache keys.
func (s Settings) Hash() (string, error) {
	h := sha256.New()
	// map order must not change the hash
	rules := slices.Sorted(maps.Keys(s.Warnings))
	actions := make([]guards.WarningAction, 0, len(rules))
	for _, rule := range rules {
		actions = append(actions, s.Warnings[rule])
	}
	s.Warnings = nil
	if err := gob.NewEncoder(h).Encode(struct {
		Settings Settings
		Rules    []string
		Actions  []guards.WarningAction
	}{s, rules, actions}); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
