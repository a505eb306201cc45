package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/config"
)

// flagKey turns a flag name into its config key segment.
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// addWindowFlags registers the window geometry flags on cmd.
func addWindowFlags(cmd *cobra.Command, bindings map[string]string) {
	def := config.Default().Window
	f := cmd.Flags()
	f.Float64("window-size", def.Size, "Window width in seconds")
	f.Float64("step", def.Step, "Window step in seconds")
	f.String("mode", string(def.Mode), "Windowing mode (sliding, fixed)")
	bindings["window-size"] = "window.size"
	bindings["step"] = "window.step"
	bindings["mode"] = "window.mode"
}
