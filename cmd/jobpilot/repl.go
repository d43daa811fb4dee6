package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jobpilot/automation/internal/confidence"
	"github.com/jobpilot/automation/internal/controller"
	"github.com/jobpilot/automation/internal/cvparser"
)

// repl is the interactive line-reader loop the daemon drops into when no
// one-shot verb is given and stdin is a terminal. It drives the same
// in-process Controller the Dashboard does, so "start" typed here and a
// POST to /api/session/start from a browser leave the session in the same
// state.
type repl struct {
	ctrl   *controller.Controller
	scorer *confidence.Scorer
	parser *cvparser.Parser
	in     *bufio.Scanner
	quit   chan struct{}
}

func newREPL(ctrl *controller.Controller, scorer *confidence.Scorer, parser *cvparser.Parser) *repl {
	return &repl{
		ctrl:   ctrl,
		scorer: scorer,
		parser: parser,
		in:     bufio.NewScanner(os.Stdin),
		quit:   make(chan struct{}),
	}
}

// Run blocks until the operator types quit or stdin closes.
func (r *repl) Run() {
	fmt.Println("Welcome to jobpilot. Type help or ? to list commands.")
	fmt.Print("(jobpilot) ")

	for r.in.Scan() {
		line := strings.TrimSpace(r.in.Text())
		if line != "" {
			r.dispatch(line)
		}
		select {
		case <-r.quit:
			return
		default:
		}
		fmt.Print("(jobpilot) ")
	}
}

func (r *repl) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "start":
		if err := r.ctrl.StartSession(); err != nil {
			fmt.Printf("error starting session: %v\n", err)
			return
		}
		fmt.Println("Session started successfully.")
	case "stop":
		if err := r.ctrl.EndSession(); err != nil {
			fmt.Printf("error ending session: %v\n", err)
			return
		}
		fmt.Println("Session ended successfully.")
	case "pause":
		r.ctrl.PauseSession()
		fmt.Println("Session paused successfully.")
	case "resume":
		r.ctrl.ResumeSession()
		fmt.Println("Session resumed successfully.")
	case "status":
		state := r.ctrl.State()
		fmt.Printf("stopped=%v paused=%v current_task=%q\n", state.Stopped, state.Paused, state.CurrentTask)
		if state.StartedAt != nil {
			fmt.Printf("started_at=%s\n", state.StartedAt.Format(time.RFC3339))
		}
	case "search":
		r.doSearch(rest)
	case "parse-cv":
		r.doParseCV(rest)
	case "score":
		r.doScore(rest)
	case "config":
		fmt.Printf("config changes via the REPL are not supported; edit config.yaml and restart (args: %s)\n", strings.Join(rest, " "))
	case "quit", "exit":
		fmt.Println("Shutting down CLI...")
		if err := r.ctrl.EndSession(); err != nil {
			fmt.Printf("error during shutdown: %v\n", err)
		}
		close(r.quit)
	case "help", "?":
		fmt.Println("Commands: start, stop, pause, resume, status, search <platform> \"Job Title\" [location], parse-cv <path>, score <action>, config, quit")
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		fmt.Println("Type 'help' or '?' for available commands.")
	}
}

// doSearch expects: search <platform> "Job Title" [location]
func (r *repl) doSearch(args []string) {
	parts, err := splitQuoted(strings.Join(args, " "))
	if err != nil {
		fmt.Printf("failed to parse arguments: %v\n", err)
		return
	}
	if len(parts) < 2 {
		fmt.Println(`Usage: search <platform> "Job Title" [location]`)
		return
	}
	platform, jobTitle := parts[0], parts[1]
	location := ""
	if len(parts) > 2 {
		location = parts[2]
	}

	fmt.Printf("Starting job search for %q on %s in %q...\n", jobTitle, platform, location)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	processed, err := r.ctrl.RunPlatformFlow(ctx, platform, jobTitle, location)
	if err != nil {
		fmt.Printf("error running job search flow: %v\n", err)
		return
	}
	fmt.Printf("Completed search & apply flow: processed %d listings.\n", processed)
}

// doParseCV expects: parse-cv <path>
func (r *repl) doParseCV(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: parse-cv <path>")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	record, err := r.parser.ParseCV(ctx, args[0])
	if err != nil {
		fmt.Printf("error parsing CV: %v\n", err)
		return
	}
	fmt.Printf("Parsed CV: name=%q email=%q %d skill(s), %d experience entr(ies)\n",
		record.Name, record.Email, len(record.Skills), len(record.Experience))
}

// doScore expects: score <action>
func (r *repl) doScore(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: score <action>")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	score := r.scorer.Compute(ctx, args[0], nil)
	fmt.Printf("Confidence for %q: %.2f\n", args[0], score)
}

// splitQuoted is a small shell-word splitter supporting double-quoted
// fields, enough for the REPL's own syntax without pulling in a shlex
// library for one command.
func splitQuoted(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hasField := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasField = true
		case r == ' ' && !inQuotes:
			if hasField {
				fields = append(fields, cur.String())
				cur.Reset()
				hasField = false
			}
		default:
			cur.WriteRune(r)
			hasField = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if hasField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
