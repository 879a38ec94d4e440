package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"execsvc/internal/cli/command"
	httpclient "execsvc/internal/cli/http"
	"execsvc/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "execsvc> "

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	prefs      *state.Preferences
	statePath  string
	prettyJSON bool
	out        io.Writer
	// readValue asks for a missing field. Nil means fields cannot be prompted.
	readValue func(label string) (string, error)
}

func New(client *httpclient.Client, commands map[string]command.Command, prefs *state.Preferences, statePath string, prettyJSON bool, out io.Writer) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		prefs:      prefs,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		out:        out,
	}
}

// Run reads lines until exit, EOF or Ctrl-C on an empty line.
func (s *Session) Run(ctx context.Context, historyPath string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.out = rl.Stdout()
	s.readValue = func(label string) (string, error) {
		rl.SetPrompt(label + ": ")
		defer rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			return "", fmt.Errorf("read input failed: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if strings.TrimSpace(line) == "" {
					s.printLine("bye")
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				s.printLine("bye")
				return nil
			}
			return err
		}
		if s.HandleLine(ctx, line) {
			return nil
		}
	}
}

// HandleLine runs one input line and reports whether the session should end.
func (s *Session) HandleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	switch line {
	case "exit", "quit":
		s.printLine("bye")
		return true
	case "help":
		s.printHelp()
		return false
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return false
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return false
	}

	if err := s.handleCommand(ctx, line); err != nil {
		s.printLine("error: %v", err)
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|exec-timeout")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8080")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.prefs.BaseURL = parts[1]
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil || dur <= 0 {
			s.printLine("invalid duration: %s", parts[1])
			return
		}
		s.client.SetTimeout(dur)
		s.prefs.Timeout = dur
		s.printLine("timeout set to %s", dur)
	case "exec-timeout":
		if len(parts) < 2 {
			s.printLine("usage: set exec-timeout 1000")
			return
		}
		ms, err := command.ParseInt64(parts[1])
		if err != nil || ms < 0 {
			s.printLine("invalid exec timeout: %s", parts[1])
			return
		}
		s.prefs.DefaultTimeMs = ms
		s.printLine("exec timeout set to %dms", ms)
	default:
		s.printLine("unknown set command")
		return
	}
	if err := state.Save(s.statePath, *s.prefs); err != nil {
		s.printLine("save cli state failed: %v", err)
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("timeout: %s", s.client.Timeout())
		if s.prefs.DefaultTimeMs > 0 {
			s.printLine("exec-timeout: %dms", s.prefs.DefaultTimeMs)
		} else {
			s.printLine("exec-timeout: <unset>")
		}
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
	params, err := command.ParseArgs(tokens[1:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)

	s.applyDefaults(cmd, params)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) applyDefaults(cmd command.Command, params command.Params) {
	if cmd.Name == "exec" && !params.Has("timeout") && s.prefs.DefaultTimeMs > 0 {
		params.Set("timeout", fmt.Sprintf("%d", s.prefs.DefaultTimeMs))
	}
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if s.readValue == nil {
			return fmt.Errorf("missing required param: %s", field.Name)
		}
		value, err := s.readValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", strings.TrimRight(string(resp.Body), "\n"))
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	for _, name := range command.Names(s.commands) {
		s.printLine("  %s", s.commands[name].Summary)
	}
	s.printLine("system: help | exit | set base|timeout|exec-timeout | show config")
	s.printLine("examples:")
	s.printLine("  exec file=./hello.sh calldata=bitcoin timeout=1000")
	s.printLine(`  exec code='#!/bin/sh\necho hi' timeout=500`)
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
