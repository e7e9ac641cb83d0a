package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lautenbacher.net/ledfx/config"
)

func main() {
	cfile := flag.String("config", config.CONFILE, "Config file to use (.yml or .toml)")
	headless := flag.Bool("headless", false, "Run without the terminal UI and print to stdout")
	prompt := flag.String("prompt", "", "Effect description, overrides the Prompt from the config file")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	app.cfile = *cfile
	app.headless = *headless
	app.promptOverride = *prompt

	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
