// Command segment runs watershed segmentation over a target's saved contour
// annotations and writes the resulting label grid as TSV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"

	"cortex-annotate/internal/config"
	"cortex-annotate/internal/segment"
	"cortex-annotate/internal/store"
	"cortex-annotate/pkg/geometry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the annotation project configuration")
	saveDir := flag.String("save", "save", "Directory containing saved annotations")
	user := flag.String("user", "", "Username subdirectory under the save directory")
	targetID := flag.String("target", "", "Target ID (concrete key values joined by /)")
	resolution := flag.Int("resolution", 512, "Segmentation raster resolution in pixels")
	outPath := flag.String("out", "labels.tsv", "Output path for the label TSV")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	target, ok := cfg.Targets.ByID(*targetID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown target %q\n", *targetID)
		os.Exit(1)
	}

	st := store.New(store.SaveRootFor(*saveDir, *user))
	var contours [][]geometry.Point2D
	var all []geometry.Point2D
	for _, name := range cfg.AnnotationOrder {
		if !cfg.Annotations[name].Type.Joined() {
			continue
		}
		pts, err := st.Load(target.Path(), name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Loading %s: %v\n", name, err)
			os.Exit(1)
		}
		if len(pts) > 1 {
			contours = append(contours, pts)
			all = append(all, pts...)
		}
	}
	if len(contours) == 0 {
		fmt.Fprintf(os.Stderr, "No drawn contours for %s\n", target.ID())
		os.Exit(1)
	}

	// Segment over the drawn extent with a small margin.
	bounds := geometry.PathBounds(all)
	mx, my := bounds.Width*0.05, bounds.Height*0.05
	xlim := geometry.Limits{Min: bounds.X - mx, Max: bounds.X + bounds.Width + mx}
	ylim := geometry.Limits{Min: bounds.Y - my, Max: bounds.Y + bounds.Height + my}

	result, err := segment.Watershed(contours, xlim, ylim, *resolution)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %v\n", err)
		os.Exit(1)
	}
	if err := writeLabels(*outPath, result); err != nil {
		fmt.Fprintf(os.Stderr, "Writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d regions from %d contours, labels in %s\n",
		target.ID(), len(result.Regions), len(contours), *outPath)
	for _, r := range result.Regions {
		fmt.Printf("  region %d: area %d px, centroid (%.3f, %.3f)\n",
			r.Label, r.Area, r.Centroid.X, r.Centroid.Y)
	}
}

// writeLabels writes the label grid as one TSV row per raster row.
func writeLabels(path string, res *segment.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for row := 0; row < res.Resolution; row++ {
		for col := 0; col < res.Resolution; col++ {
			if col > 0 {
				if err := w.WriteByte('\t'); err != nil {
					f.Close()
					return err
				}
			}
			if _, err := w.WriteString(strconv.Itoa(res.Labels[row*res.Resolution+col])); err != nil {
				f.Close()
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
