// Command forteserver hosts IEC 61499-style function-block deployments:
// it accepts TCP deployment connections and runs the resulting FB graph.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/forte-town/forte/internal/cli"
	"github.com/forte-town/forte/internal/collab"
	"github.com/forte-town/forte/internal/config"
	"github.com/forte-town/forte/internal/fbtype"
	"github.com/forte-town/forte/internal/logging"
	"github.com/forte-town/forte/internal/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cfgFile, err := config.Load("forte.toml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	opts, err := cli.Parse(argv, cfgFile)
	if err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts == nil {
		// -h was given; usage already printed.
		return 0
	}

	var out io.Writer = os.Stderr
	if logFile := os.Getenv("FORTE_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
			return 2
		}
		defer f.Close()
		out = f
	}
	log := logging.New(out, logging.ParseLevel(opts.LogLevel), "forte")

	registry, err := fbtype.New(opts.ResourcesRoot, log.Named("fbtype"))
	if err != nil {
		log.Error("loading type registry from %s: %v", opts.ResourcesRoot, err)
		return 2
	}
	log.Info("loaded %d function block type(s) from %s", len(registry.Types()), opts.ResourcesRoot)

	addr := net.JoinHostPort(opts.Address, fmt.Sprintf("%d", opts.Port))
	server := protocol.NewServer(addr, filepath.Clean(opts.ResourcesRoot), registry, collab.Default(), log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer cancel()

	log.Info("listening on %s", addr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		<-errCh
		return 0
	case err := <-errCh:
		if err != nil {
			log.Error("server exited: %v", err)
			return 2
		}
		return 0
	}
}
