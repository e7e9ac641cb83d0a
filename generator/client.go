package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"lautenbacher.net/ledfx/board"
)

var (
	// ErrGenerationFailed is wrapped by every error Generate returns.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrSuperseded is returned for a request cancelled by a newer one.
	ErrSuperseded    = errors.New("generation superseded by a newer request")
	ErrMissingAPIKey = errors.New("no API key configured")
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// Options configure the client and its backend. Credentials are passed
// in here, the package never reads the environment.
type Options struct {
	Model       string
	APIKey      string
	Endpoint    string
	Timeout     time.Duration
	Temperature float32
	TargetBoard string
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.TargetBoard == "" {
		o.TargetBoard = DefaultTargetBoard
	}
	return o
}

// Backend sends one prompt to a text generation service and returns the
// raw reply.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator is what the session drives; Client is the real one.
type Generator interface {
	Generate(ctx context.Context, pins []board.PinConfig, description string) (*Response, error)
}

type Client struct {
	backend Backend
	opts    Options
}

func NewClient(backend Backend, opts Options) *Client {
	return &Client{backend: backend, opts: opts.withDefaults()}
}

// Generate asks the backend for a sketch and a simulation for the given
// pins. There are no retries. On error no partial result is returned.
func (c *Client) Generate(ctx context.Context, pins []board.PinConfig, description string) (*Response, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: empty description", ErrGenerationFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	prompt := BuildPrompt(pins, description, c.opts.TargetBoard)
	slog.Debug("Sending generation request", "model", c.opts.Model, "promptBytes", len(prompt))

	start := time.Now()
	text, err := c.backend.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no answer within %s: %w", ErrGenerationFailed, c.opts.Timeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	resp, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}
	slog.Debug("Generation response parsed", "pattern", resp.PatternName,
		"frames", len(resp.SimulationSequence), "took", time.Since(start))
	return resp, nil
}

// Close releases the backend if it holds resources.
func (c *Client) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
