package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Actions is the part of the controller driven from the keyboard.
type Actions interface {
	ToggleListening()
	Submit(text string)
	Ask(n int)
	Interrupt()
	SaveKey(key string)
}

// CommandKind identifies a parsed input line.
type CommandKind int

const (
	CmdSubmit CommandKind = iota
	CmdToggleVoice
	CmdAsk
	CmdInterrupt
	CmdSaveKey
	CmdHelp
	CmdQuit
	CmdUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind

	// Arg is the message text, the API key or the unknown command.
	Arg string

	// N is the quick question number for CmdAsk.
	N int
}

// Parse interprets one input line. Lines not starting with "/" are
// messages.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdSubmit, Arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "v", "voice":
		return Command{Kind: CmdToggleVoice}
	case "s", "stop":
		return Command{Kind: CmdInterrupt}
	case "key":
		return Command{Kind: CmdSaveKey, Arg: arg}
	case "h", "help", "?":
		return Command{Kind: CmdHelp}
	case "q", "quit", "exit":
		return Command{Kind: CmdQuit}
	}
	if n, err := strconv.Atoi(name); err == nil {
		return Command{Kind: CmdAsk, N: n}
	}
	return Command{Kind: CmdUnknown, Arg: line}
}

// Loop reads lines from in and dispatches them to a until ctx is done, the
// input ends or the user quits. Quitting and end of input return nil.
func Loop(ctx context.Context, in io.Reader, v *View, a Actions) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("console: read input: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := dispatch(Parse(line), v, a); quit {
				return nil
			}
		}
	}
}

func dispatch(c Command, v *View, a Actions) (quit bool) {
	switch c.Kind {
	case CmdSubmit:
		a.Submit(c.Arg)
	case CmdToggleVoice:
		a.ToggleListening()
	case CmdAsk:
		a.Ask(c.N)
	case CmdInterrupt:
		a.Interrupt()
	case CmdSaveKey:
		a.SaveKey(c.Arg)
	case CmdHelp:
		v.Help()
	case CmdQuit:
		return true
	default:
		v.Notice(fmt.Sprintf("Unknown command %q, type /help for the list", c.Arg))
	}
	return false
}
