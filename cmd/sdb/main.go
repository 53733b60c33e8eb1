package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sdb-dev/sdb/pkg/config"
	"github.com/sdb-dev/sdb/pkg/logflags"
	"github.com/sdb-dev/sdb/pkg/target"
	"github.com/sdb-dev/sdb/pkg/terminal"
)

var (
	attachPid int
	logSpec   string
)

func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "sdb [program]",
		Short: "sdb is a source-less debugger for x86-64 Linux.",
		Long: `sdb launches the given program under the debugger, or attaches to a
running process with --pid, and starts an interactive session.`,
		Args: cobra.MaximumNArgs(1),
		Run:  rootCmd,
	}
	rootCommand.Flags().IntVarP(&attachPid, "pid", "p", 0, "attach to the process with the given pid")
	rootCommand.Flags().StringVar(&logSpec, "log", "", "comma separated list of components to log (debugger,ptrace)")
	rootCommand.Flags().SetInterspersed(false)
	return rootCommand
}

func rootCmd(cmd *cobra.Command, args []string) {
	if err := logflags.Setup(logSpec); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}

	var (
		tgt *target.Target
		err error
	)
	switch {
	case attachPid != 0:
		tgt, err = target.Attach(attachPid)
	case len(args) == 1:
		tgt, err = target.Launch(args[0], nil)
	default:
		cmd.Usage()
		os.Exit(-1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
	defer tgt.Close()

	if attachPid == 0 {
		fmt.Printf("Launched process with PID %d\n", tgt.Process().Pid())
	}

	t := terminal.New(tgt, config.LoadConfig())
	if err := t.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func main() {
	// pflag reorders arguments by default which would swallow the
	// debuggee's own flags
	pflag.CommandLine.SetInterspersed(false)
	if err := New().Execute(); err != nil {
		os.Exit(-1)
	}
}
