package devices

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// ErrUnknownRole is returned by Lookup for an unregistered role name.
var ErrUnknownRole = errors.New("unknown device role")

// Role names.
const (
	RoleDoor      = "door"
	RoleDoorBurst = "door-burst"
	RoleWindow    = "window"
	RoleOutlet    = "outlet"
)

// Rule decides which profiles are candidates for a role and how they rank.
type Rule interface {
	// Name is the role identifier, e.g. "door".
	Name() string
	// Title is a human readable heading for the candidate list.
	Title() string
	// Accept reports whether p passes the role's thresholds.
	Accept(p Profile) bool
	// Less reports whether a ranks before b.
	Less(a, b Profile) bool
	// Describe formats one candidate line.
	Describe(p Profile) string
}

// DoorRule matches sparse event-driven senders.
type DoorRule struct {
	MinGap   float64 `mapstructure:"min_gap" yaml:"min_gap"`
	MaxCount int     `mapstructure:"max_count" yaml:"max_count"`
}

func (r DoorRule) Name() string  { return RoleDoor }
func (r DoorRule) Title() string { return "door sensor" }

func (r DoorRule) Accept(p Profile) bool {
	return p.Count >= 2 && p.Count <= r.MaxCount && p.MeanGap >= r.MinGap
}

func (r DoorRule) Less(a, b Profile) bool {
	if a.MeanGap != b.MeanGap {
		return a.MeanGap > b.MeanGap
	}
	if a.Count != b.Count {
		return a.Count < b.Count
	}
	return a.Addr < b.Addr
}

func (r DoorRule) Describe(p Profile) string {
	return fmt.Sprintf("%s\tcount=%d\tavg_gap=%.1fs\tmed_gap=%.1fs",
		capture.FormatAddr(p.Addr), p.Count, p.MeanGap, p.MedianGap)
}

// DoorBurstRule is a DoorRule that also wants bursts of closely spaced
// frames, which contact sensors emit on open/close transitions.
type DoorBurstRule struct {
	DoorRule  `mapstructure:",squash" yaml:",inline"`
	BurstGap  float64 `mapstructure:"burst_gap" yaml:"burst_gap"`
	MinBursts int     `mapstructure:"min_bursts" yaml:"min_bursts"`
}

func (r DoorBurstRule) Name() string  { return RoleDoorBurst }
func (r DoorBurstRule) Title() string { return "door sensor (burst)" }

func (r DoorBurstRule) Accept(p Profile) bool {
	return r.DoorRule.Accept(p) && p.Bursts >= r.MinBursts
}

func (r DoorBurstRule) Less(a, b Profile) bool {
	if a.Bursts != b.Bursts {
		return a.Bursts > b.Bursts
	}
	if a.MeanGap != b.MeanGap {
		return a.MeanGap > b.MeanGap
	}
	return a.Addr < b.Addr
}

func (r DoorBurstRule) Describe(p Profile) string {
	return fmt.Sprintf("%s\tcount=%d\tbursts=%d\tavg_gap=%.1fs\tmed_gap=%.1fs",
		capture.FormatAddr(p.Addr), p.Count, p.Bursts, p.MeanGap, p.MedianGap)
}

// WindowRule matches sparse senders with one destination, small frames and
// irregular timing.
type WindowRule struct {
	MinGap      float64 `mapstructure:"min_gap" yaml:"min_gap"`
	MaxCount    int     `mapstructure:"max_count" yaml:"max_count"`
	MaxDst      int     `mapstructure:"max_dst" yaml:"max_dst"`
	MaxFrameLen float64 `mapstructure:"max_frame_len" yaml:"max_frame_len"`
	MinCV       float64 `mapstructure:"min_cv" yaml:"min_cv"`
}

func (r WindowRule) Name() string  { return RoleWindow }
func (r WindowRule) Title() string { return "window sensor" }

func (r WindowRule) Accept(p Profile) bool {
	if p.Count < 2 || p.Count > r.MaxCount || p.DistinctDst > r.MaxDst {
		return false
	}
	if p.HasLen && p.MeanLen > r.MaxFrameLen {
		return false
	}
	return p.MeanGap >= r.MinGap && p.CV >= r.MinCV
}

func (r WindowRule) Less(a, b Profile) bool {
	return DoorRule{}.Less(a, b)
}

func (r WindowRule) Describe(p Profile) string {
	return fmt.Sprintf("%s\tcount=%d\tavg_gap=%.1fs\tmed_gap=%.1fs\tcv=%.2f",
		capture.FormatAddr(p.Addr), p.Count, p.MeanGap, p.MedianGap, p.CV)
}

// OutletRule matches chatty, regular reporters such as metering plugs.
type OutletRule struct {
	MinCount    int     `mapstructure:"min_count" yaml:"min_count"`
	MaxGap      float64 `mapstructure:"max_gap" yaml:"max_gap"`
	MaxDst      int     `mapstructure:"max_dst" yaml:"max_dst"`
	MinFrameLen float64 `mapstructure:"min_frame_len" yaml:"min_frame_len"`
	MaxFrameLen float64 `mapstructure:"max_frame_len" yaml:"max_frame_len"`
}

func (r OutletRule) Name() string  { return RoleOutlet }
func (r OutletRule) Title() string { return "smart outlet" }

func (r OutletRule) Accept(p Profile) bool {
	if p.Count < 2 || p.Count < r.MinCount || p.DistinctDst > r.MaxDst {
		return false
	}
	if p.HasLen && (p.MeanLen < r.MinFrameLen || p.MeanLen > r.MaxFrameLen) {
		return false
	}
	return p.MeanGap <= r.MaxGap
}

func (r OutletRule) Less(a, b Profile) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if a.MeanGap != b.MeanGap {
		return a.MeanGap < b.MeanGap
	}
	return a.Addr < b.Addr
}

func (r OutletRule) Describe(p Profile) string {
	meanLen := "n/a"
	if p.HasLen {
		meanLen = fmt.Sprintf("%.1f", p.MeanLen)
	}
	return fmt.Sprintf("%s\tcount=%d\tavg_gap=%.1fs\tdst=%d\tmean_len=%s",
		capture.FormatAddr(p.Addr), p.Count, p.MeanGap, p.DistinctDst, meanLen)
}

// Rules holds one configuration per role.
type Rules struct {
	Door      DoorRule      `mapstructure:"door" yaml:"door"`
	DoorBurst DoorBurstRule `mapstructure:"door-burst" yaml:"door-burst"`
	Window    WindowRule    `mapstructure:"window" yaml:"window"`
	Outlet    OutletRule    `mapstructure:"outlet" yaml:"outlet"`
}

// DefaultRules returns the thresholds the field scripts shipped with.
func DefaultRules() Rules {
	door := DoorRule{MinGap: 30, MaxCount: 100}
	return Rules{
		Door:      door,
		DoorBurst: DoorBurstRule{DoorRule: door, BurstGap: 2, MinBursts: 1},
		Window:    WindowRule{MinGap: 30, MaxCount: 100, MaxDst: 1, MaxFrameLen: 60, MinCV: 0.5},
		Outlet:    OutletRule{MinCount: 50, MaxGap: 30, MaxDst: 2, MinFrameLen: 40, MaxFrameLen: 100},
	}
}

// Lookup returns the rule registered under name.
func (r Rules) Lookup(name string) (Rule, error) {
	switch name {
	case RoleDoor:
		return r.Door, nil
	case RoleDoorBurst:
		return r.DoorBurst, nil
	case RoleWindow:
		return r.Window, nil
	case RoleOutlet:
		return r.Outlet, nil
	}
	return nil, errors.Wrap(ErrUnknownRole, name)
}

// Names lists the registered roles.
func Names() []string {
	return []string{RoleDoor, RoleDoorBurst, RoleWindow, RoleOutlet}
}

func sortProfiles(profiles []Profile, rule Rule) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return rule.Less(profiles[i], profiles[j])
	})
}
