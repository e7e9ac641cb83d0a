package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/config"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/logging"
	"lautenbacher.net/ledfx/playback"
	pl "lautenbacher.net/ledfx/platform"
)

// apiKeyVars are tried in order when the config file has no key.
var apiKeyVars = []string{"GEMINI_API_KEY", "API_KEY"}

type generationResult struct {
	resp *generator.Response
	err  error
}

// App owns the application state. Everything but the display updater
// and the generation goroutines runs on the loop in Run.
type App struct {
	ossignal       chan os.Signal
	cfile          string
	headless       bool
	promptOverride string
	out            io.Writer
	getenv         func(string) string
	newBackend     func(context.Context, generator.Options) (generator.Backend, error)
	newPlatform    func(config.Config) pl.Platform

	conf     config.Config
	prompt   string
	board    *board.Board
	engine   *playback.Engine
	session  *generator.Session
	platform pl.Platform
	watcher  *config.Watcher

	ctx        context.Context
	cancel     context.CancelFunc
	results    chan generationResult
	stopsignal chan struct{}
	shutdownWg sync.WaitGroup
}

func NewApp(ossignal chan os.Signal) *App {
	a := &App{
		ossignal:   ossignal,
		cfile:      config.CONFILE,
		out:        os.Stdout,
		getenv:     os.Getenv,
		results:    make(chan generationResult, 1),
		stopsignal: make(chan struct{}),
	}
	a.newBackend = generator.NewBackend
	a.newPlatform = a.defaultPlatform
	return a
}

// Run blocks until the user quits or an interrupt arrives.
func (a *App) Run() error {
	conf, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Init(!a.headless, conf.Logging); err != nil {
		return fmt.Errorf("can't open log file: %w", err)
	}
	defer logging.Close()

	a.initialise(conf)
	defer a.shutdown()

	if err := a.platform.Start(); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	if !a.waitReady() {
		return nil
	}
	slog.Info("LED FX generator ready", "config", a.cfile, "pins", len(conf.Pins), "model", conf.Generator.Model)

	a.watchConfig()
	a.loop()
	return nil
}

// waitReady blocks until the platform can show output. It reports false
// when a signal to end arrives first. SIGHUP is ignored here, there is
// nothing to reload yet.
func (a *App) waitReady() bool {
	for {
		select {
		case <-a.platform.Ready():
			return true
		case sig := <-a.ossignal:
			if sig == syscall.SIGHUP {
				slog.Info("Ignoring SIGHUP during startup")
				continue
			}
			slog.Info("Received signal during startup", "signal", sig)
			return false
		}
	}
}

func (a *App) initialise(conf config.Config) {
	a.conf = conf
	a.prompt = conf.Prompt
	if a.promptOverride != "" {
		a.prompt = a.promptOverride
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.board = board.NewBoard(conf.Pins)
	a.engine = playback.NewEngine(
		playback.WithPins(conf.Pins),
		playback.WithMinFrameDelay(conf.Playback.MinFrameDelay),
	)
	a.session = generator.NewSession(a.buildGenerator(conf.Generator))
	a.platform = a.newPlatform(conf)

	a.shutdownWg.Add(1)
	go a.displayUpdater()
}

func (a *App) defaultPlatform(conf config.Config) pl.Platform {
	if a.headless {
		return pl.NewHeadlessPlatform(conf.Pins, conf.Playback.HistoryLength, a.out, a.prompt)
	}
	return pl.NewTUIPlatform(conf.Pins, conf.Playback.HistoryLength, a.prompt, conf.Generator.TargetBoard)
}

func (a *App) shutdown() {
	slog.Info("Shutting down")
	a.cancel()
	a.session.Cancel()
	close(a.stopsignal)
	a.shutdownWg.Wait()

	a.engine.Close()
	a.platform.Stop()
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.session.Close()
}

// loadConfig reads the config file, falling back to the defaults when
// it does not exist, and injects the API key from the environment.
func (a *App) loadConfig() (config.Config, error) {
	conf, err := config.ReadConfig(a.cfile)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "file", a.cfile)
		conf, err = config.Default(), nil
	}
	if err != nil {
		return config.Config{}, err
	}
	if conf.Generator.APIKey == "" {
		for _, name := range apiKeyVars {
			if key := a.getenv(name); key != "" {
				conf.Generator.APIKey = key
				break
			}
		}
	}
	return conf, nil
}

// buildGenerator returns a client for the configured service. Without
// a usable backend every generation fails with the reason. The session
// closes the client it replaces.
func (a *App) buildGenerator(gc config.GeneratorCfg) generator.Generator {
	opts := generator.Options{
		Model:       gc.Model,
		APIKey:      gc.APIKey,
		Endpoint:    gc.Endpoint,
		Timeout:     gc.Timeout,
		Temperature: gc.Temperature,
		TargetBoard: gc.TargetBoard,
	}
	backend, err := a.newBackend(a.ctx, opts)
	if err != nil {
		slog.Error("Generator not available", "error", err)
		return unavailable{err: err}
	}
	return generator.NewClient(backend, opts)
}

type unavailable struct{ err error }

func (u unavailable) Generate(context.Context, []board.PinConfig, string) (*generator.Response, error) {
	return nil, fmt.Errorf("%w: %w", generator.ErrGenerationFailed, u.err)
}

func (a *App) watchConfig() {
	w, err := config.NewWatcher(a.cfile, config.DefaultDebounce)
	if err != nil {
		slog.Warn("Config hot reload disabled", "error", err)
		return
	}
	a.watcher = w
}

func (a *App) loop() {
	var configChanges <-chan struct{}
	if a.watcher != nil {
		configChanges = a.watcher.Changes()
	}
	for {
		select {
		case cmd := <-a.platform.Commands():
			if a.handleCommand(cmd) {
				return
			}
		case res := <-a.results:
			a.handleResult(res)
		case <-configChanges:
			a.reload()
		case sig := <-a.ossignal:
			if sig == syscall.SIGHUP {
				a.reload()
				continue
			}
			slog.Info("Received signal", "signal", sig)
			return
		}
	}
}

// handleCommand reports whether the application should end.
func (a *App) handleCommand(cmd pl.Command) bool {
	slog.Debug("Command", "kind", cmd.Kind, "index", cmd.Index)
	switch cmd.Kind {
	case pl.CmdQuit:
		return true
	case pl.CmdGenerate:
		a.generate(cmd.Description)
	case pl.CmdTogglePlay:
		if len(a.engine.Sequence()) == 0 {
			a.platform.DisplayStatus(pl.Status{Message: "Nothing to play yet, generate a pattern first."})
			break
		}
		a.engine.SetPlaying(!a.engine.Playing())
	case pl.CmdAddLED, pl.CmdAddButton:
		t := board.LED
		if cmd.Kind == pl.CmdAddButton {
			t = board.BUTTON
		}
		pc, err := a.board.AddComponent(t)
		if err != nil {
			a.platform.DisplayStatus(pl.Status{Err: err})
			break
		}
		slog.Info("Added component", "pin", pc.Pin, "type", pc.Type)
		a.pinsChanged()
	case pl.CmdRemovePin:
		if err := a.board.RemovePin(cmd.Index); err != nil {
			a.platform.DisplayStatus(pl.Status{Err: err})
			break
		}
		a.pinsChanged()
	case pl.CmdUpdatePin:
		if err := a.board.UpdatePin(cmd.Index, cmd.Pin, cmd.Color); err != nil {
			a.platform.DisplayStatus(pl.Status{Err: err})
			break
		}
		slog.Info("Updated component", "index", cmd.Index, "pin", cmd.Pin, "color", cmd.Color)
		a.pinsChanged()
	case pl.CmdSave:
		rc := config.RuntimeConfig{Prompt: a.prompt, Pins: a.board.Pins()}
		if err := config.SaveRuntime(a.cfile, rc); err != nil {
			a.platform.DisplayStatus(pl.Status{Err: err})
			break
		}
		a.platform.DisplayStatus(pl.Status{Message: "Board saved to " + a.cfile})
	case pl.CmdReload:
		a.reload()
	}
	return false
}

// generate pauses playback and asks for a new pattern in the
// background. The answer arrives in handleResult.
func (a *App) generate(description string) {
	a.prompt = description
	a.engine.SetPlaying(false)
	a.platform.DisplayStatus(pl.Status{Loading: true})

	pins := a.board.Pins()
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		resp, err := a.session.Generate(a.ctx, pins, description)
		if errors.Is(err, generator.ErrSuperseded) {
			return
		}
		select {
		case a.results <- generationResult{resp: resp, err: err}:
		case <-a.stopsignal:
		}
	}()
}

func (a *App) handleResult(res generationResult) {
	if res.err != nil {
		// the previous pattern stays, playback stays paused
		a.platform.DisplayStatus(pl.Status{Err: res.err})
		return
	}
	a.engine.SetSequence(res.resp.SimulationSequence)
	a.platform.DisplayResult(res.resp)
	msg := fmt.Sprintf("Generated %q with %d frames.", res.resp.PatternName, len(res.resp.SimulationSequence))
	if n := len(a.engine.Problems()); n > 0 {
		msg += fmt.Sprintf(" %d problems in the frame data were repaired, see log.", n)
	}
	a.platform.DisplayStatus(pl.Status{Message: msg})
	if a.conf.Playback.AutoPlay {
		a.engine.SetPlaying(true)
	}
}

func (a *App) pinsChanged() {
	pins := a.board.Pins()
	a.engine.SetPins(pins)
	a.platform.SetPins(pins)
	if dups := a.board.Duplicates(); len(dups) > 0 {
		slog.Warn("Pin numbers used more than once", "pins", dups)
		a.platform.DisplayStatus(pl.Status{Message: fmt.Sprintf("Warning: pins %v are used more than once.", dups)})
	}
}

type historySetter interface {
	SetHistoryLength(n int)
}

// reload applies a changed config file. An invalid file is reported
// and the running configuration is kept.
func (a *App) reload() {
	conf, err := a.loadConfig()
	if err != nil {
		slog.Error("Config reload failed", "error", err)
		a.platform.DisplayStatus(pl.Status{Err: err})
		return
	}
	slog.Info("Reloading configuration", "file", a.cfile)
	genChanged := conf.Generator != a.conf.Generator
	a.conf = conf
	logging.SetLevel(conf.Logging.Level)

	a.board.Replace(conf.Pins)
	a.engine.SetMinFrameDelay(conf.Playback.MinFrameDelay)
	a.pinsChanged()
	if hs, ok := a.platform.(historySetter); ok {
		hs.SetHistoryLength(conf.Playback.HistoryLength)
	}
	if genChanged {
		a.session.SetGenerator(a.buildGenerator(conf.Generator))
	}
	a.platform.DisplayStatus(pl.Status{Message: "Configuration reloaded."})
}

// displayUpdater forwards every published engine frame to the platform.
func (a *App) displayUpdater() {
	defer a.shutdownWg.Done()
	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending display updater go-routine")
			return
		case <-a.engine.Changes():
			a.platform.DisplayFrame(a.engine.LastFrame())
		}
	}
}
