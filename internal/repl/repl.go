// Package repl drives the interactive loop: one blocking prompt, one
// pipeline turn, one printed answer. Exit tokens end the loop without
// touching the pipeline; everything else, after trimming, is a query.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"library-assistant/internal/common/logger"
)

// Responder runs one turn. chat.Assistant satisfies it.
type Responder interface {
	Respond(ctx context.Context, text string) string
}

// exitTokens end the session, matched case-insensitively.
var exitTokens = map[string]bool{
	"quit": true,
	"exit": true,
	"bye":  true,
	"q":    true,
}

const welcomeBanner = `======================================================================
LIBRARY ASSISTANT
======================================================================
Ask about books, members, loans, fines, or reservations. For example:
  - Find books by J.K. Rowling
  - Is "The Hobbit" available?
  - Who borrowed Harry Potter?
  - Show overdue books
Type 'quit' to exit.
======================================================================`

const goodbyeLine = "Goodbye! Happy reading."

type REPL struct {
	responder   Responder
	in          io.Reader
	out         io.Writer
	turnTimeout time.Duration
	log         logger.Logger
}

func New(responder Responder, in io.Reader, out io.Writer, turnTimeout time.Duration, log logger.Logger) *REPL {
	return &REPL{
		responder:   responder,
		in:          in,
		out:         out,
		turnTimeout: turnTimeout,
		log:         log,
	}
}

// Run blocks until the user exits or input is exhausted. Pipeline problems
// surface as printed responses; Run only fails on a broken input stream.
// A bufio.Reader rather than a Scanner: lines carry pasted user text and
// must not be capped at the scanner's token limit.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, welcomeBanner)

	reader := bufio.NewReader(r.in)
	for {
		fmt.Fprint(r.out, "\nYou: ")
		raw, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading input: %w", err)
		}

		line := strings.TrimSpace(raw)
		if line != "" {
			if exitTokens[strings.ToLower(line)] {
				fmt.Fprintln(r.out, goodbyeLine)
				return nil
			}
			response := r.turn(ctx, line)
			fmt.Fprintln(r.out, "\nAssistant: "+response)
		}

		if err == io.EOF {
			break
		}
	}

	fmt.Fprintln(r.out, goodbyeLine)
	return nil
}

func (r *REPL) turn(ctx context.Context, line string) string {
	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}

	start := time.Now()
	response := r.responder.Respond(ctx, line)
	r.log.Debug("turn completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return response
}
