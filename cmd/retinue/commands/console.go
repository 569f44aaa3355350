package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dyluth/retinue/internal/peer"
	"github.com/dyluth/retinue/internal/printer"
	"github.com/dyluth/retinue/pkg/wire"
)

const consoleHelp = `Commands:
  list                   companions and their states
  talk <companion>       talk to a companion
  claim <companion>      ask to recruit a companion directly
  answer [companion] <n|choice>
                         answer a pending question
  prompts                pending questions
  dismiss <companion>    send a recruited companion home
  warp <from> <to>       move to another location
  help                   this text
  quit                   leave the session
`

// console turns typed commands into peer actions.
type console struct {
	p   *peer.Peer
	out io.Writer
}

func newConsole(p *peer.Peer, out io.Writer) *console {
	return &console{p: p, out: out}
}

// Run reads commands from in until it ends or quit is typed. Failed commands
// are reported and reading continues.
func (c *console) Run(ctx context.Context, in io.Reader, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		done, err := c.Exec(ctx, scanner.Text())
		if err != nil {
			printer.Warning("%v\n", err)
		}
		if done {
			quit()
			return
		}
	}
}

// Exec runs one command line. It reports true when the player asked to leave.
func (c *console) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch cmd {
	case "help", "?":
		fmt.Fprint(c.out, consoleHelp)
		return false, nil

	case "quit", "exit":
		return true, nil

	case "list", "ls":
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.list()
		})

	case "prompts":
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			prompts := c.p.Prompts()
			if len(prompts) == 0 {
				fmt.Fprintln(c.out, "No questions pending.")
			}
			for _, pr := range prompts {
				fmt.Fprintf(c.out, "%s %s %v\n", pr.Entity, pr.Question, pr.Options)
			}
			return nil
		})

	case "talk":
		if err := need(1, "talk <companion>"); err != nil {
			return false, err
		}
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.p.Interact(ctx, wire.EntityID(args[0]))
		})

	case "claim":
		if err := need(1, "claim <companion>"); err != nil {
			return false, err
		}
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.p.Claim(ctx, wire.EntityID(args[0]))
		})

	case "dismiss":
		if err := need(1, "dismiss <companion>"); err != nil {
			return false, err
		}
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.p.Dismiss(ctx, wire.EntityID(args[0]))
		})

	case "warp":
		if err := need(2, "warp <from> <to>"); err != nil {
			return false, err
		}
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.p.Warp(ctx, args[0], args[1])
		})

	case "answer":
		if len(args) < 1 || len(args) > 2 {
			return false, fmt.Errorf("usage: answer [companion] <n|choice>")
		}
		return false, c.p.Do(ctx, func(ctx context.Context) error {
			return c.answer(ctx, args)
		})
	}

	return false, fmt.Errorf("unknown command %q, type 'help'", cmd)
}

// answer resolves the prompt and choice named by args and answers it.
func (c *console) answer(ctx context.Context, args []string) error {
	choice := args[len(args)-1]

	var prompt *peer.Prompt
	for _, pr := range c.p.Prompts() {
		if len(args) == 2 && pr.Entity != wire.EntityID(args[0]) {
			continue
		}
		prompt = &pr
		break
	}
	if prompt == nil {
		return peer.ErrNoPrompt
	}

	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(prompt.Options) {
			return fmt.Errorf("choose 1-%d", len(prompt.Options))
		}
		choice = prompt.Options[n-1]
	}
	return c.p.Answer(ctx, prompt.Entity, prompt.Question, choice)
}

// list renders the registry. It runs on the peer goroutine.
func (c *console) list() error {
	table := tablewriter.NewWriter(c.out)
	table.Header([]string{"Companion", "Name", "State", "Owner"})
	for _, m := range c.p.Registry().All() {
		owner := string(m.Owner())
		if owner == "" {
			owner = "-"
		}
		if err := table.Append([]string{string(m.Entity()), m.Name(), string(m.Current()), owner}); err != nil {
			return err
		}
	}
	return table.Render()
}
