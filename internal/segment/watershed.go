// Package segment splits the area enclosed by drawn contours into labeled
// regions using watershed segmentation. Contours are rasterized onto a
// working canvas, region seeds are found by distance transform, and the
// watershed fills every pixel with a region label.
package segment

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"

	"cortex-annotate/pkg/geometry"
)

// Region describes one watershed label in figure coordinates.
type Region struct {
	Label    int
	Area     int
	Centroid geometry.Point2D
	Bounds   geometry.Rect
}

// Result holds the watershed output. Labels is row-major with Resolution
// rows and columns; 0 marks watershed boundary pixels.
type Result struct {
	Resolution int
	Labels     []int
	Regions    []Region
}

// LabelAt returns the region label of a figure-coordinate point, or 0 on a
// boundary or outside the segmented extent.
func (r *Result) LabelAt(p geometry.Point2D, xlim, ylim geometry.Limits) int {
	col := int((p.X - xlim.Min) / xlim.Span() * float64(r.Resolution))
	row := int((ylim.Max - p.Y) / ylim.Span() * float64(r.Resolution))
	if col < 0 || col >= r.Resolution || row < 0 || row >= r.Resolution {
		return 0
	}
	return r.Labels[row*r.Resolution+col]
}

// Watershed segments the plane bounded by xlim and ylim along the given
// contours at the given pixel resolution.
func Watershed(contours [][]geometry.Point2D, xlim, ylim geometry.Limits, resolution int) (*Result, error) {
	if resolution < 8 {
		return nil, fmt.Errorf("segment: resolution %d too small", resolution)
	}
	if xlim.Span() <= 0 || ylim.Span() <= 0 {
		return nil, fmt.Errorf("segment: degenerate limits x=%v y=%v", xlim, ylim)
	}

	canvas := gocv.NewMatWithSize(resolution, resolution, gocv.MatTypeCV8U)
	defer canvas.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	toPixel := func(p geometry.Point2D) image.Point {
		return image.Pt(
			int((p.X-xlim.Min)/xlim.Span()*float64(resolution)),
			int((ylim.Max-p.Y)/ylim.Span()*float64(resolution)),
		)
	}
	drew := false
	for _, contour := range contours {
		for i := 1; i < len(contour); i++ {
			gocv.Line(&canvas, toPixel(contour[i-1]), toPixel(contour[i]), white, 1)
			drew = true
		}
	}
	if !drew {
		return nil, fmt.Errorf("segment: no contour segments to rasterize")
	}

	// Seeds are the deep interior of each enclosed area: far from every
	// contour line by distance transform, thresholded at 40% of the
	// maximum distance.
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(canvas, &inverted)

	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(inverted, &dist, &distLabels,
		gocv.DistL2, gocv.DistanceMask3, gocv.DistanceLabelCComp)

	_, maxDist, _, _ := gocv.MinMaxLoc(dist)
	seeds := gocv.NewMat()
	defer seeds.Close()
	gocv.Threshold(dist, &seeds, 0.4*maxDist, 255, gocv.ThresholdBinary)
	seeds8 := gocv.NewMat()
	defer seeds8.Close()
	seeds.ConvertTo(&seeds8, gocv.MatTypeCV8U)

	markers := gocv.NewMat()
	defer markers.Close()
	gocv.ConnectedComponents(seeds8, &markers)

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(canvas, &bgr, gocv.ColorGrayToBGR)
	gocv.Watershed(bgr, &markers)

	res := &Result{
		Resolution: resolution,
		Labels:     make([]int, resolution*resolution),
	}
	type acc struct {
		area   int
		xs, ys []float64
	}
	regions := make(map[int]*acc)
	sx := xlim.Span() / float64(resolution)
	sy := ylim.Span() / float64(resolution)
	for row := 0; row < resolution; row++ {
		for col := 0; col < resolution; col++ {
			label := int(markers.GetIntAt(row, col))
			if label <= 1 {
				// -1 is a watershed boundary, 1 the outer background.
				continue
			}
			res.Labels[row*resolution+col] = label
			a := regions[label]
			if a == nil {
				a = &acc{}
				regions[label] = a
			}
			a.area++
			a.xs = append(a.xs, xlim.Min+(float64(col)+0.5)*sx)
			a.ys = append(a.ys, ylim.Max-(float64(row)+0.5)*sy)
		}
	}

	for label, a := range regions {
		res.Regions = append(res.Regions, Region{
			Label: label,
			Area:  a.area,
			Centroid: geometry.Point2D{
				X: floats.Sum(a.xs) / float64(a.area),
				Y: floats.Sum(a.ys) / float64(a.area),
			},
			Bounds: geometry.Rect{
				X:      floats.Min(a.xs),
				Y:      floats.Min(a.ys),
				Width:  floats.Max(a.xs) - floats.Min(a.xs),
				Height: floats.Max(a.ys) - floats.Min(a.ys),
			},
		})
	}
	return res, nil
}
