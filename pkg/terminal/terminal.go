// Package terminal provides the line-oriented front-end of the
// debugger. It is purely a consumer of the core's API: every command
// failure is caught at dispatch granularity and the session keeps
// going.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	sys "golang.org/x/sys/unix"

	"github.com/sdb-dev/sdb/pkg/config"
	"github.com/sdb-dev/sdb/pkg/proc"
	"github.com/sdb-dev/sdb/pkg/target"
)

// Term represents the terminal running sdb.
type Term struct {
	target *target.Target
	conf   *config.Config
	cmds   *Commands
	prompt string

	line       *liner.State
	dumb       bool
	stdin      *bufio.Reader
	stdout     io.Writer
	completion *trie.Trie

	lastCommand string
	quitting    bool
}

// New returns a terminal driving the given target.
func New(tgt *target.Target, conf *config.Config) *Term {
	if conf == nil {
		conf = config.LoadConfig()
	}
	t := &Term{
		target: tgt,
		conf:   conf,
		cmds:   DebugCommands(),
		prompt: conf.Prompt,
		stdout: os.Stdout,
		dumb:   !isatty.IsTerminal(os.Stdin.Fd()) || strings.ToLower(os.Getenv("TERM")) == "dumb",
	}

	t.completion = trie.New()
	for _, name := range t.cmds.Names() {
		t.completion.Add(name, nil)
	}
	for _, name := range proc.SyscallNames() {
		t.completion.Add(name, nil)
	}

	if t.dumb {
		t.stdin = bufio.NewReader(os.Stdin)
	} else {
		t.line = liner.NewLiner()
		t.line.SetCompleter(func(line string) []string {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				return t.cmds.Names()
			}
			last := fields[len(fields)-1]
			prefix := strings.TrimSuffix(line, last)
			var out []string
			for _, match := range t.completion.PrefixSearch(last) {
				out = append(out, prefix+match)
			}
			return out
		})
		if f, err := os.Open(t.conf.HistoryFile); err == nil {
			t.line.ReadHistory(f)
			f.Close()
		}
	}
	return t
}

// Close releases the line editor and persists history.
func (t *Term) Close() {
	if t.line != nil {
		if f, err := os.Create(t.conf.HistoryFile); err == nil {
			t.line.WriteHistory(f)
			f.Close()
		}
		t.line.Close()
	}
}

// Run reads and dispatches commands until quit or EOF. An interrupt
// stops the inferior rather than the debugger.
func (t *Term) Run() error {
	defer t.Close()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt)
	defer signal.Stop(sigch)
	go func() {
		for range sigch {
			sys.Kill(t.target.Process().Pid(), sys.SIGSTOP)
		}
	}()

	for !t.quitting {
		line, err := t.readLine()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			// an empty line repeats the previous command
			line = t.lastCommand
			if line == "" {
				continue
			}
		} else {
			t.lastCommand = line
			if t.line != nil {
				t.line.AppendHistory(line)
			}
		}

		args, err := splitCommand(line)
		if err == nil && len(args) > 0 {
			args = t.expandAlias(args)
			err = t.cmds.Call(t, args)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
	return nil
}

func (t *Term) readLine() (string, error) {
	if t.dumb {
		fmt.Fprint(t.stdout, t.prompt)
		return t.stdin.ReadString('\n')
	}
	return t.line.Prompt(t.prompt)
}

// splitCommand tokenizes a command line; quoting is honored so that
// future arguments with spaces survive.
func splitCommand(line string) ([]string, error) {
	words, err := argv.Argv(line, nil, nil)
	if err != nil {
		return nil, proc.Parsef("malformed command line: %v", err)
	}
	if len(words) == 0 {
		return nil, nil
	}
	return words[0], nil
}

func (t *Term) expandAlias(args []string) []string {
	if t.conf == nil {
		return args
	}
	if expansion, ok := t.conf.Aliases[args[0]]; ok && len(expansion) > 0 {
		return append(append([]string{}, expansion...), args[1:]...)
	}
	return args
}
