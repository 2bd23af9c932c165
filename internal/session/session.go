package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"worldbuilder-agent/internal/usecase"
)

const prompt = "Your request: "

// Processor is the caller-facing router API.
type Processor interface {
	Process(ctx context.Context, in usecase.RouteInput) (usecase.RouteOutput, error)
}

// Session is an interactive request loop bound to one memory thread.
type Session struct {
	proc     Processor
	in       io.Reader
	out      io.Writer
	render   *Renderer
	threadID int64
	logger   *zap.Logger
}

func New(proc Processor, in io.Reader, out io.Writer, threadID int64, logger *zap.Logger) (*Session, error) {
	if proc == nil {
		return nil, errors.New("session: processor must not be nil")
	}
	if in == nil || out == nil {
		return nil, errors.New("session: input and output must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		proc:     proc,
		in:       in,
		out:      out,
		render:   NewRenderer(out),
		threadID: threadID,
		logger:   logger,
	}, nil
}

// Run reads requests until a sentinel line, end of input or cancellation.
// Failed requests are reported and the loop continues. Cancellation ends the
// session even while it waits for input.
func (s *Session) Run(ctx context.Context) error {
	s.render.Banner()
	s.render.Line("System ready! Describe anything about your world.\n")

	done := make(chan struct{})
	defer close(done)
	lines, scanErr := s.readLines(done)

	for {
		if ctx.Err() != nil {
			s.render.Line("\nSession ended by user. Goodbye!")
			return nil
		}
		fmt.Fprint(s.out, prompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			s.render.Line("\n\nSession ended by user. Goodbye!")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-scanErr; err != nil {
				return fmt.Errorf("session: read input: %w", err)
			}
			s.render.Line("\nSession ended. Goodbye!")
			return nil
		}

		input := strings.TrimSpace(line)
		if isSentinel(input) {
			s.render.Line("\nThanks for building worlds with us!")
			return nil
		}

		out, err := s.proc.Process(ctx, usecase.RouteInput{Input: input, ThreadID: s.threadID})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.render.Line("\nSession ended by user. Goodbye!")
				return nil
			}
			s.logger.Error("request failed", zap.Error(err), zap.Int64("thread_id", s.threadID))
			s.render.Error(err)
			continue
		}
		s.render.Turn(input, out)
	}
}

// readLines scans input on its own goroutine so a blocked read never holds up
// cancellation. The goroutine stops at end of input or once done is closed and
// the pending line is dropped; a read blocked in the reader outlives Run.
func (s *Session) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

func isSentinel(line string) bool {
	switch strings.ToLower(line) {
	case "", "quit", "exit":
		return true
	}
	return false
}
