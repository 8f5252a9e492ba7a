package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskpilot/internal/usecase"
)

// turnRunner is the slice of the orchestrator the chat loop needs.
type turnRunner interface {
	RunTurn(ctx context.Context, session *usecase.Session, userMsg string) string
}

// chatDeps carries the wiring for the interactive loop so tests can
// substitute readers and writers.
type chatDeps struct {
	Orchestrator turnRunner
	Session      *usecase.Session
	Timeout      time.Duration
	In           io.Reader
	Out          io.Writer
}

// runChat reads user messages line by line and prints the assistant's
// replies until the user quits or the process is interrupted.
func runChat(ctx context.Context, deps chatDeps) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(deps.Out, "Chat initialized. Type 'q' to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(deps.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(deps.Out, "\nChat with AI (q to quit): ")

		var input string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(deps.Out, "\nGoodbye!")
			return nil
		case input, ok = <-lines:
			if !ok {
				// Input closed (EOF or ctrl-d).
				fmt.Fprintln(deps.Out, "\nGoodbye!")
				return nil
			}
		}

		input = strings.TrimSpace(input)
		if strings.EqualFold(input, "q") {
			fmt.Fprintln(deps.Out, "Goodbye!")
			return nil
		}
		if input == "" {
			fmt.Fprintln(deps.Out, "Please enter a message.")
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, deps.Timeout)
		reply := deps.Orchestrator.RunTurn(turnCtx, deps.Session, input)
		cancel()

		fmt.Fprintf(deps.Out, "\nAI: %s\n", reply)
	}
}
