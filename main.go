// Package main provides the entry point for the cortex annotation tool.
package main

import (
	"flag"
	"log"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"cortex-annotate/internal/app"
	"cortex-annotate/internal/config"
	"cortex-annotate/internal/store"
	"cortex-annotate/internal/version"
	"cortex-annotate/ui/mainwindow"
)

const appTitle = "Cortex Annotate"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to the annotation project configuration")
	cacheDir := flag.String("cache", "cache", "Directory for rendered figure and grid images")
	saveDir := flag.String("save", "save", "Directory for saved annotations")
	gitDir := flag.String("git", ".", "Repository to derive the user name from")
	user := flag.String("user", "", "User name (overrides git detection)")
	flag.Parse()

	log.Printf("Starting %s v%s", appTitle, version.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Configuration error: %v", err)
		os.Exit(1)
	}
	log.Printf("Loaded %s: %d targets, %d annotations",
		*configPath, cfg.Targets.Len(), len(cfg.AnnotationOrder))

	username := *user
	if username == "" {
		username = store.GitUsername(*gitDir)
	}

	state, err := app.New(cfg, app.Options{
		CacheRoot: *cacheDir,
		SaveRoot:  *saveDir,
		User:      username,
	})
	if err != nil {
		log.Printf("Startup error: %v", err)
		os.Exit(1)
	}

	fa := fyneapp.New()
	win := mainwindow.New(fa, state)
	win.SetTitle(appTitle)
	win.ShowAndRun()
}
