// Command cachewarm pre-renders every figure and grid image for a project
// so the interactive tool never blocks on a first render.
package main

import (
	"flag"
	"fmt"
	"os"

	"cortex-annotate/internal/app"
	"cortex-annotate/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the annotation project configuration")
	cacheDir := flag.String("cache", "cache", "Directory for rendered figure and grid images")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	state, err := app.New(cfg, app.Options{CacheRoot: *cacheDir, SaveRoot: os.TempDir()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		os.Exit(1)
	}

	failures := 0
	for _, target := range cfg.Targets.All() {
		for _, name := range cfg.AnnotationOrder {
			annot := cfg.Annotations[name]
			if annot.Filter != nil && !annot.Filter(target) {
				continue
			}
			if _, _, err := state.Grids.Get(target, annot); err != nil {
				fmt.Fprintf(os.Stderr, "%s / %s: %v\n", target.ID(), name, err)
				failures++
				continue
			}
			fmt.Printf("%s / %s\n", target.ID(), name)
		}
	}
	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d grids failed\n", failures)
		os.Exit(1)
	}
}
