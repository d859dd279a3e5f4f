package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/urfave/cli"

	"github.com/ardnew/softi2c/command"
	"github.com/ardnew/softi2c/miscdev"
)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// shell is an interactive session on one connection.
type shell struct {
	client  *miscdev.Client
	timeout time.Duration
	out     io.Writer
	session string
}

func shellAction(c *cli.Context) error {
	timeout := c.GlobalDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	cl, err := miscdev.Dial(ctx, c.GlobalString("socket"))
	cancel()
	if err != nil {
		return err
	}
	defer cl.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "myi2c> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{client: cl, timeout: timeout, out: rl.Stdout()}
	if err := sh.exec("open"); err != nil {
		return err
	}
	defer sh.exec("close")

	sh.printHelp()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if err := sh.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("open"),
		readline.PcItem("close"),
		readline.PcItem("ioctl"),
		readline.PcItem(command.KindReadTemperature.String()),
		readline.PcItem(command.KindReadPressure.String()),
		readline.PcItem(command.KindReadRegister.String()),
		readline.PcItem(command.KindWriteControl.String()),
		readline.PcItem("quit"),
	)
}

// exec runs one shell line.
func (s *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		s.printHelp()
		return nil

	case "quit", "exit", "q":
		return errQuit

	case "open":
		if s.session != "" {
			return fmt.Errorf("session %s already open", s.session)
		}
		id, err := s.client.Open(ctx)
		if err != nil {
			return err
		}
		s.session = id
		fmt.Fprintf(s.out, "session %s\n", id)
		return nil

	case "close":
		if s.session == "" {
			return nil
		}
		err := s.client.Release(ctx, s.session)
		s.session = ""
		return err

	case "ioctl":
		if len(args) != 2 {
			return errors.New("usage: ioctl CMD ARG")
		}
		code, arg, err := parseIoctl(args[0], args[1])
		if err != nil {
			return err
		}
		resp, err := s.client.Ioctl(ctx, s.session, code, arg)
		if err != nil {
			return err
		}
		return report(s.out, resp)

	default:
		if _, err := command.ParseKind(cmd); err != nil {
			return fmt.Errorf("unknown command %q (try help)", cmd)
		}
		operand := ""
		if len(args) > 0 {
			operand = args[0]
		}
		resp, err := s.client.Command(ctx, s.session, cmd, operand)
		if err != nil {
			return err
		}
		return report(s.out, resp)
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  open                     open a session
  close                    close the session
  ioctl CMD ARG            numeric command (reads temperature)
  read-temperature         read the temperature register
  read-pressure            read the pressure register
  read-register NAME       read a named register (chip-id, status, control, ...)
  write-control VALUE      write the control register
  help                     show this help
  quit                     exit
`)
}
