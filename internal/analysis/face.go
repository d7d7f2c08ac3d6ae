package analysis

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// The face heuristic estimates how many human subjects a photograph contains
// using purely statistical analysis. It is deliberately conservative: the goal
// is to reject obvious multi-subject shots while tolerating single portraits.
// The estimate is clamped to {0, 1, 2}.

var laplacianKernel = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// CountFaces estimates the number of faces in the image. The statistical pass
// can fail on degenerate inputs; it then falls back to an edge-density pass,
// and if that fails too the estimate is 1 (fail-open, single subject).
func CountFaces(data []byte, t Tunables) (int, map[string]interface{}, error) {
	img, err := decodeImage(data)
	if err != nil {
		return 0, nil, fmt.Errorf("decode image: %w", err)
	}

	estimate, diag, err := statisticalEstimate(img, t)
	if err == nil {
		return estimate, diag, nil
	}

	estimate, diag, fbErr := edgeDensityEstimate(img, t)
	if fbErr != nil {
		return 1, map[string]interface{}{"estimate": 1, "method": "failopen"}, nil
	}
	return estimate, diag, nil
}

// CheckFaces rejects when the face estimate exceeds one subject.
func CheckFaces(data []byte, t Tunables) (Verdict, error) {
	estimate, diag, err := CountFaces(data, t)
	if err != nil {
		return Verdict{}, err
	}
	if estimate > 1 {
		msg := fmt.Sprintf("Multiple faces detected (%d). Please upload a photo with a single subject.", estimate)
		return Rejected(CodeMultipleFacesDetected, msg, diag), nil
	}
	return Accepted(diag), nil
}

// CheckFacesGuarded is the pipeline variant: a Reject verdict is re-examined
// and overridden to Accept for portrait-shaped images, images with both sides
// under FacePortraitMaxDim, or low-color-variance images.
// Solid-background single-subject portraits otherwise trip the grid heuristic.
func CheckFacesGuarded(data []byte, t Tunables) (Verdict, error) {
	v, err := CheckFaces(data, t)
	if err != nil || v.OK {
		return v, err
	}

	img, err := decodeImage(data)
	if err != nil {
		return v, nil
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	portrait := h > w || (w < t.FacePortraitMaxDim && h < t.FacePortraitMaxDim)
	flatColor := colorStdDev(img) < t.FacePortraitColorStd
	if portrait || flatColor {
		diag := v.Diagnostics
		if diag == nil {
			diag = map[string]interface{}{}
		}
		diag["portraitOverride"] = true
		return Accepted(diag), nil
	}
	return v, nil
}

func statisticalEstimate(img image.Image, t Tunables) (int, map[string]interface{}, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0, nil, fmt.Errorf("empty image")
	}
	aspect := float64(w) / float64(h)

	// High-resolution short-circuit: panoramas and very large landscape shots
	// are almost never single portraits.
	if (w > t.FaceHiResWidth || h > t.FaceHiResHeight) && aspect > t.FaceHiResAspect {
		return 2, map[string]interface{}{"estimate": 2, "method": "shortcircuit", "reason": "hires_wide"}, nil
	}
	if w*h > t.FaceMegapixelLimit && w >= h {
		return 2, map[string]interface{}{"estimate": 2, "method": "shortcircuit", "reason": "megapixels"}, nil
	}

	small := imaging.Fit(img, 800, 800, imaging.Lanczos)
	gray := grayFrom(small)
	_, sigma := gray.meanStdDev()

	// Complex scene heuristic: very high global contrast on a large image.
	if sigma > t.FaceComplexStdDev && w > 800 && h > 700 {
		return 2, map[string]interface{}{"estimate": 2, "method": "shortcircuit", "reason": "complex_scene", "stddev": sigma}, nil
	}

	grid := t.FaceGrid
	if grid < 2 {
		return 0, nil, fmt.Errorf("grid too small: %d", grid)
	}
	cellW := gray.w / grid
	cellH := gray.h / grid
	if cellW == 0 || cellH == 0 {
		return 0, nil, fmt.Errorf("image too small for %dx%d grid", grid, grid)
	}

	// Per-cell mean intensity.
	means := make([]float64, grid*grid)
	for cy := 0; cy < grid; cy++ {
		for cx := 0; cx < grid; cx++ {
			var sum float64
			for y := cy * cellH; y < (cy+1)*cellH; y++ {
				for x := cx * cellW; x < (cx+1)*cellW; x++ {
					sum += gray.pix[y*gray.w+x]
				}
			}
			means[cy*grid+cx] = sum / float64(cellW*cellH)
		}
	}

	// Cross-cell deviation sets the feature threshold.
	var sum float64
	for _, m := range means {
		sum += m
	}
	cellMean := sum / float64(len(means))
	var sq float64
	for _, m := range means {
		d := m - cellMean
		sq += d * d
	}
	cellSigma := math.Sqrt(sq / float64(len(means)))

	type feature struct {
		x, y       float64 // cell center in downscaled pixel coordinates
		confidence float64
	}
	var features []feature
	if cellSigma > 0 {
		for cy := 0; cy < grid; cy++ {
			for cx := 0; cx < grid; cx++ {
				var delta float64
				var neighbors int
				for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nx, ny := cx+d[0], cy+d[1]
					if nx < 0 || nx >= grid || ny < 0 || ny >= grid {
						continue
					}
					delta += math.Abs(means[cy*grid+cx] - means[ny*grid+nx])
					neighbors++
				}
				if neighbors == 0 {
					continue
				}
				delta /= float64(neighbors)
				if delta <= t.FaceFeatureDelta*cellSigma {
					continue
				}
				ratio := delta / cellSigma
				confidence := math.Min(ratio/2, 0.95)
				if confidence > t.FaceFeatureConfidence {
					features = append(features, feature{
						x:          (float64(cx) + 0.5) * float64(cellW),
						y:          (float64(cy) + 0.5) * float64(cellH),
						confidence: confidence,
					})
				}
			}
		}
	}

	// Cluster features by proximity; each cluster is one face candidate.
	parent := make([]int, len(features))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < len(features); i++ {
		for j := i + 1; j < len(features); j++ {
			dx := features[i].x - features[j].x
			dy := features[i].y - features[j].y
			if math.Hypot(dx, dy) <= t.FaceClusterRadius {
				parent[find(i)] = find(j)
			}
		}
	}
	clusters := map[int][]int{}
	for i := range features {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}
	estimate := len(clusters)

	// A single horizontally stretched cluster usually spans two adjacent
	// subjects rather than one.
	if len(clusters) == 1 {
		for _, members := range clusters {
			if len(members) >= 10 {
				minX, maxX := math.Inf(1), math.Inf(-1)
				minY, maxY := math.Inf(1), math.Inf(-1)
				for _, i := range members {
					minX = math.Min(minX, features[i].x)
					maxX = math.Max(maxX, features[i].x)
					minY = math.Min(minY, features[i].y)
					maxY = math.Max(maxY, features[i].y)
				}
				if maxY > minY && (maxX-minX)/(maxY-minY) > t.FaceWideClusterAspect {
					estimate = 2
				}
			}
		}
	}
	if len(features) > t.FaceManyFeatures && estimate < 2 {
		estimate = 2
	}
	if len(features) > t.FaceSomeFeatures && estimate == 0 {
		estimate = 1
	}
	if estimate == 0 && aspect > t.FaceLandscapeAspect && w > t.FaceLandscapeWidth {
		estimate = 1
	}
	if estimate > 2 {
		estimate = 2
	}

	return estimate, map[string]interface{}{
		"estimate":     estimate,
		"method":       "grid",
		"featureCount": len(features),
		"clusterCount": len(clusters),
		"stddev":       sigma,
	}, nil
}

// edgeDensityEstimate is the fallback pass: a Laplacian edge count scaled into
// the {0, 1, 2} range.
func edgeDensityEstimate(img image.Image, t Tunables) (int, map[string]interface{}, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0, nil, fmt.Errorf("empty image")
	}
	small := imaging.Fit(img, 800, 800, imaging.Lanczos)
	gray := grayFrom(small)
	edges := convolve3x3(gray, laplacianKernel)

	var strong int
	for _, v := range edges.pix {
		if math.Abs(v) > t.FaceEdgeStrong {
			strong++
		}
	}
	density := float64(strong) / float64(len(edges.pix))
	estimate := int(math.Round(math.Min(density*t.FaceEdgeScale, 2)))
	return estimate, map[string]interface{}{
		"estimate":    estimate,
		"method":      "fallback",
		"edgeDensity": density,
	}, nil
}
