package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/devices"
)

func newIdentifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Rank source addresses that look like a given device role",
	}
	for _, role := range devices.Names() {
		cmd.AddCommand(newRoleCmd(a, role))
	}
	return cmd
}

func newRoleCmd(a *app, role string) *cobra.Command {
	def := config.Default().Identify
	rules := def.Rules

	cmd := &cobra.Command{
		Use:   role,
		Short: fmt.Sprintf("Identify likely %s addresses", role),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIdentify(cmd, role)
		},
	}

	f := cmd.Flags()
	f.Int("top", def.Top, "Number of candidate addresses to list")
	bindings := map[string]string{"top": "identify.top"}
	key := func(name string) string {
		return "identify.rules." + role + "." + name
	}

	switch role {
	case devices.RoleDoor, devices.RoleDoorBurst:
		f.Float64("min-gap", rules.Door.MinGap, "Minimum average seconds between packets")
		f.Int("max-count", rules.Door.MaxCount, "Ignore devices with more packets than this")
		bindings["min-gap"] = key("min_gap")
		bindings["max-count"] = key("max_count")
		if role == devices.RoleDoorBurst {
			f.Float64("burst-gap", rules.DoorBurst.BurstGap, "Gaps shorter than this many seconds count as a burst")
			f.Int("min-bursts", rules.DoorBurst.MinBursts, "Minimum number of bursts")
			bindings["burst-gap"] = key("burst_gap")
			bindings["min-bursts"] = key("min_bursts")
		}
	case devices.RoleWindow:
		f.Float64("min-gap", rules.Window.MinGap, "Minimum average seconds between packets")
		f.Int("max-count", rules.Window.MaxCount, "Ignore devices with more packets than this")
		f.Int("max-dst", rules.Window.MaxDst, "Ignore devices sending to more than this many destinations")
		f.Float64("max-frame-len", rules.Window.MaxFrameLen, "Ignore devices with mean frame length above this")
		f.Float64("min-cv", rules.Window.MinCV, "Minimum coefficient of variation of packet gaps")
		for _, name := range []string{"min-gap", "max-count", "max-dst", "max-frame-len", "min-cv"} {
			bindings[name] = key(flagKey(name))
		}
	case devices.RoleOutlet:
		f.Int("min-count", rules.Outlet.MinCount, "Minimum number of packets required")
		f.Float64("max-gap", rules.Outlet.MaxGap, "Maximum average seconds between packets")
		f.Int("max-dst", rules.Outlet.MaxDst, "Ignore devices sending to more than this many destinations")
		f.Float64("min-frame-len", rules.Outlet.MinFrameLen, "Ignore devices with mean frame length below this")
		f.Float64("max-frame-len", rules.Outlet.MaxFrameLen, "Ignore devices with mean frame length above this")
		for _, name := range []string{"min-count", "max-gap", "max-dst", "min-frame-len", "max-frame-len"} {
			bindings[name] = key(flagKey(name))
		}
	}

	a.bind(cmd, bindings)
	return cmd
}

func (a *app) runIdentify(cmd *cobra.Command, role string) error {
	table, err := a.loadCapture()
	if err != nil {
		return err
	}

	rule, err := a.cfg.Identify.Rules.Lookup(role)
	if err != nil {
		return err
	}

	done := a.metrics.Time("identify")
	clf := devices.New(rule,
		devices.WithTop(a.cfg.Identify.Top),
		devices.WithLogger(a.log),
	)
	candidates := clf.Rank(table)
	done()

	a.metrics.Candidates.WithLabelValues(role).Set(float64(len(candidates)))
	clf.Print(cmd.OutOrStdout(), candidates)
	return nil
}
