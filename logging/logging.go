package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"lautenbacher.net/ledfx/config"
)

// bufferingTeeWriter holds log output back until a target exists (the
// TUI log pane is only available after the first draw) and copies
// everything to an optional file.
type bufferingTeeWriter struct {
	mu          sync.Mutex
	buffer      *bytes.Buffer
	target      io.Writer
	file        *os.File
	isBuffering bool
}

func (w *bufferingTeeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.isBuffering {
		w.buffer.Write(p)
	} else if w.target != nil {
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var (
	writer   *bufferingTeeWriter
	levelVar slog.LevelVar
)

// ParseLevel maps a level name to slog; unknown names mean INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default slog logger. With bufferOutput set nothing
// is shown until SetOutput is called.
func Init(bufferOutput bool, cfg config.LoggingCfg) error {
	w := &bufferingTeeWriter{
		buffer:      &bytes.Buffer{},
		isBuffering: bufferOutput,
	}
	if !bufferOutput {
		w.target = os.Stderr
	}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		w.file = file
	}
	writer = w

	levelVar.Set(ParseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: &levelVar}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetLevel changes the level of the installed logger, e.g. after a
// config reload.
func SetLevel(name string) {
	levelVar.Set(ParseLevel(name))
}

// SetOutput flushes the buffer to the new writer and starts live logging.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.buffer.Len() > 0 {
		if _, err := newTarget.Write(writer.buffer.Bytes()); err != nil {
			return err
		}
		writer.buffer.Reset()
	}
	writer.target = newTarget
	writer.isBuffering = false
	return nil
}

// BufferOutput stops live logging and starts buffering, used when the
// TUI goes away before the program ends.
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.isBuffering = true
}

// Close flushes what is still buffered and closes the log file.
func Close() error {
	if writer == nil {
		return nil
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.file != nil {
		if writer.buffer.Len() > 0 {
			if _, err := writer.file.Write(writer.buffer.Bytes()); err != nil {
				firstErr = err
			}
		}
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.file = nil
	} else if writer.target == nil && writer.buffer.Len() > 0 {
		// nobody saw these lines yet
		if _, err := os.Stderr.Write(writer.buffer.Bytes()); err != nil {
			firstErr = err
		}
	}
	writer.buffer.Reset()
	return firstErr
}
