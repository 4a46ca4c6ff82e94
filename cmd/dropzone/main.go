package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/justyntemme/dropzone/internal/app"
	"github.com/justyntemme/dropzone/internal/config"
)

func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	configPath := flag.String("config", "", "Config file (default ~/.config/dropzone/config.json)")
	display := flag.String("display", "", "X display to connect to (default $DISPLAY)")
	genConfig := flag.Bool("gen-config", false, "Back up the config file, write a default one and exit")
	flag.Parse()

	if *genConfig {
		backup, err := config.GenerateConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		if backup != "" {
			fmt.Printf("Backed up existing config to %s\n", backup)
		}
		fmt.Println("Wrote default config")
		os.Exit(0)
	}

	cfg := config.NewManager(*configPath)
	if err := cfg.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *display != "" {
		cfg.OverrideDisplay(*display)
	}

	app.Main(cfg, *debug)
}
