// Package cli builds the root command for the forteserver binary: a single
// flat command carrying every flag of spec.md 6 (no subcommands), the way
// the teacher's internal/cmd.rootCmd carries its persistent flags.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/forte-town/forte/internal/config"
)

// Options holds the fully-resolved set of flags, after merging an optional
// forte.toml's defaults under explicit CLI flags.
type Options struct {
	Address       string
	Port          int
	OPCUAPort     int
	LogLevel      string
	AgentEnabled  bool
	Monitor       bool
	MonitorN      int
	MonitorSecs   float64
	ResourcesRoot string
}

// ErrUsage signals "unknown args" (spec.md 6: exit 2).
var ErrUsage = fmt.Errorf("cli: usage error")

// Parse builds Options from argv, with file as the optional forte.toml
// defaults layer. Returns (nil, nil) when -h was given (help already
// printed; caller should exit 0).
func Parse(argv []string, file config.File) (*Options, error) {
	opts := &Options{
		Address:       "localhost",
		Port:          61499,
		OPCUAPort:     4840,
		LogLevel:      "ERROR",
		ResourcesRoot: "resources",
	}
	if file.Address != "" {
		opts.Address = file.Address
	}
	if file.Port != 0 {
		opts.Port = file.Port
	}
	if file.OPCUAPort != 0 {
		opts.OPCUAPort = file.OPCUAPort
	}
	if file.LogLevel != "" {
		opts.LogLevel = file.LogLevel
	}
	if file.Resources != "" {
		opts.ResourcesRoot = file.Resources
	}

	helped := false
	root := &cobra.Command{
		Use:           "forteserver",
		Short:         "Function-block deployment runtime host",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run:           func(*cobra.Command, []string) {},
	}
	root.Flags().StringVarP(&opts.Address, "address", "a", opts.Address, "listen address")
	root.Flags().IntVarP(&opts.Port, "port", "p", opts.Port, "deployment TCP port")
	root.Flags().IntVarP(&opts.OPCUAPort, "opcua-port", "u", opts.OPCUAPort, "OPC-UA port (out of core scope)")
	root.Flags().StringVarP(&opts.LogLevel, "log-level", "l", opts.LogLevel, "ERROR|WARN|INFO|DEBUG")
	root.Flags().BoolVarP(&opts.AgentEnabled, "agent", "g", false, "enable agent (out of core scope)")
	root.Flags().BoolVarP(&opts.Monitor, "monitor", "m", false, "enable monitoring (out of core scope)")
	root.SetArgs(argv)
	root.Flags().ParseErrorsWhitelist.UnknownFlags = false

	root.SetHelpFunc(func(c *cobra.Command, args []string) {
		helped = true
		c.Println(c.UsageString())
	})

	if err := root.Execute(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if helped {
		return nil, nil
	}

	remaining := root.Flags().Args()
	if opts.Monitor {
		n, secs, rest, err := parseMonitorArgs(remaining)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		opts.MonitorN, opts.MonitorSecs = n, secs
		remaining = rest
	}
	if len(remaining) > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", ErrUsage, remaining)
	}

	return opts, nil
}

// parseMonitorArgs consumes up to two optional positional values following
// -m (sample count, interval seconds), since pflag has no notion of an
// optional two-arg flag, the same way the teacher's internal/cli hand-rolls
// post-parse positional handling for flags pflag can't express directly.
func parseMonitorArgs(args []string) (n int, secs float64, rest []string, err error) {
	n, secs = 10, 1.0
	rest = args
	if len(rest) > 0 {
		if v, perr := strconv.Atoi(rest[0]); perr == nil {
			n = v
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		if v, perr := strconv.ParseFloat(rest[0], 64); perr == nil {
			secs = v
			rest = rest[1:]
		}
	}
	return n, secs, rest, nil
}
