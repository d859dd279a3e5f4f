// Command myi2cctl talks to a running myi2cd through its interface socket.
//
//	myi2cctl ioctl 100 110
//	myi2cctl command read-register status
//	myi2cctl shell
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/ardnew/softi2c/binding"
	"github.com/ardnew/softi2c/miscdev"
)

const version = "0.1.0"

var defaultSocket = filepath.Join("/run/softi2c", binding.DefaultName+miscdev.SocketSuffix)

func main() {
	app := cli.NewApp()

	app.Name = "myi2cctl"
	app.Version = version
	app.Usage = "send commands to the myi2cdev interface"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "socket, s",
			Value:  defaultSocket,
			Usage:  "interface socket `PATH`",
			EnvVar: "SOFTI2C_SOCKET",
		},
		cli.DurationFlag{
			Name:  "timeout, t",
			Value: 5 * time.Second,
			Usage: "per-request timeout",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "ioctl",
			Usage:     "send a numeric command",
			ArgsUsage: "CMD ARG",
			Action:    ioctlAction,
		},
		{
			Name:      "command",
			Aliases:   []string{"cmd"},
			Usage:     "send a named command (read-temperature, read-pressure, read-register, write-control)",
			ArgsUsage: "KIND [OPERAND]",
			Action:    commandAction,
		},
		{
			Name:   "shell",
			Usage:  "interactive session",
			Action: shellAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "myi2cctl: %v\n", err)
		os.Exit(1)
	}
}

// withSession dials the socket, opens a session, runs fn and closes both.
func withSession(c *cli.Context, fn func(ctx context.Context, cl *miscdev.Client, session string) error) error {
	timeout := c.GlobalDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cl, err := miscdev.Dial(ctx, c.GlobalString("socket"))
	if err != nil {
		return err
	}
	defer cl.Close()

	session, err := cl.Open(ctx)
	if err != nil {
		return err
	}
	defer cl.Release(context.Background(), session)

	return fn(ctx, cl, session)
}

func ioctlAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: myi2cctl ioctl CMD ARG", 2)
	}
	code, arg, err := parseIoctl(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	return withSession(c, func(ctx context.Context, cl *miscdev.Client, session string) error {
		resp, err := cl.Ioctl(ctx, session, code, arg)
		if err != nil {
			return err
		}
		return report(os.Stdout, resp)
	})
}

func commandAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.NewExitError("usage: myi2cctl command KIND [OPERAND]", 2)
	}
	return withSession(c, func(ctx context.Context, cl *miscdev.Client, session string) error {
		resp, err := cl.Command(ctx, session, c.Args().Get(0), c.Args().Get(1))
		if err != nil {
			return err
		}
		return report(os.Stdout, resp)
	})
}

func parseIoctl(cmd, arg string) (uint32, int64, error) {
	code, err := strconv.ParseUint(cmd, 0, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid command code %q: %w", cmd, err)
	}
	a, err := strconv.ParseInt(arg, 0, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid argument %q: %w", arg, err)
	}
	return uint32(code), a, nil
}

// report prints resp and returns its error.
func report(w io.Writer, resp *miscdev.Response) error {
	if err := resp.Err(); err != nil {
		fmt.Fprintf(w, "status=%s error=%q\n", resp.Status, resp.Error)
		return err
	}
	fmt.Fprintf(w, "status=%s value=0x%02X", resp.Status, resp.Value)
	if len(resp.Data) > 0 {
		fmt.Fprintf(w, " data=% X", resp.Data)
	}
	fmt.Fprintln(w)
	return nil
}
