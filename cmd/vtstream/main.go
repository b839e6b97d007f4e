// Command vtstream builds, inspects and exercises virtual texture page
// stores.
//
// Usage:
//
//	vtstream synth   [flags]   write a synthetic page store
//	vtstream inspect [flags]   print per-mip statistics of a store
//	vtstream run     [flags]   stream a simulated camera pan through the engine
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vtstream"
)

// command is one subcommand.
type command struct {
	name  string
	short string
	flags *flag.FlagSet
	exec  func(ctx context.Context, out *output, args []string) error
}

// output prints localized numbers to a writer.
type output struct {
	w io.Writer
	p *message.Printer
}

func (o *output) Printf(format string, a ...any) {
	_, _ = o.p.Fprintf(o.w, format, a...)
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmds := []*command{synthCmd(), inspectCmd(), runCmd()}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr, cmds)
		return 2
	}

	var cmd *command
	for _, c := range cmds {
		if c.name == args[0] {
			cmd = c
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "vtstream: unknown command %q\n\n", args[0])
		usage(stderr, cmds)
		return 2
	}

	cmd.flags.SetOutput(stderr)
	verbose := cmd.flags.BoolP("verbose", "v", false, "log pipeline events to stderr")
	if err := cmd.flags.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *verbose {
		vtstream.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	out := &output{w: stdout, p: message.NewPrinter(language.English)}
	if err := cmd.exec(ctx, out, cmd.flags.Args()); err != nil {
		if errors.Is(err, errUsage) {
			cmd.flags.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "vtstream %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer, cmds []*command) {
	fmt.Fprintln(w, "Usage: vtstream <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.short)
	}
}
