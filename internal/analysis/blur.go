package analysis

import (
	"fmt"
	"image"
	"math"
)

const blurRejectMessage = "Image is too blurry. Please upload a clearer photo."

var (
	sharpenKernel = [9]float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	}
	sobelXKernel = [9]float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelYKernel = [9]float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
)

// CheckBlur runs a voting ensemble of four independent sharpness tests over
// the grayscale image; two votes reject. A separate motion-blur check rejects
// on its own. If the ensemble cannot run, a single deviation test decides.
func CheckBlur(data []byte, t Tunables) (Verdict, error) {
	img, err := decodeImage(data)
	if err != nil {
		return Verdict{}, fmt.Errorf("decode image: %w", err)
	}

	verdict, ensembleErr := blurEnsemble(img, t)
	if ensembleErr == nil {
		return verdict, nil
	}

	gray := grayFrom(img)
	_, sigma := gray.meanStdDev()
	diag := map[string]interface{}{"method": "fallback", "stddev": sigma}
	if sigma < t.BlurFallbackStdDev {
		return Rejected(CodeBlurryImageDetected, blurRejectMessage, diag), nil
	}
	return Accepted(diag), nil
}

func blurEnsemble(img image.Image, t Tunables) (Verdict, error) {
	gray := grayFrom(img)
	w, h := gray.w, gray.h
	if w < 3 || h < 3 {
		return Verdict{}, fmt.Errorf("image too small for blur analysis: %dx%d", w, h)
	}

	// 1. Sharpening response: a blurry image gains far more deviation from a
	// high-pass sharpen than an already-sharp one.
	_, sigma0 := gray.meanStdDev()
	sharpened := convolve3x3(gray, sharpenKernel).clamped()
	_, sigma1 := sharpened.meanStdDev()
	var sharpenRatio float64
	if sigma0 > 0 {
		sharpenRatio = (sigma1 - sigma0) / sigma0
	}
	voteSharpen := sigma0 > 0 && sharpenRatio > t.BlurSharpenRatio

	// 2. Local variance: fraction of Laplacian blocks with meaningful texture.
	lap := convolve3x3(gray, laplacianKernel)
	blockSide := min(w, h) / 20
	if blockSide < 10 {
		blockSide = 10
	}
	var blocks, sharpBlocks int
	for by := 0; by+blockSide <= h; by += blockSide {
		for bx := 0; bx+blockSide <= w; bx += blockSide {
			var sum, sq float64
			for y := by; y < by+blockSide; y++ {
				for x := bx; x < bx+blockSide; x++ {
					v := lap.pix[y*w+x]
					sum += v
					sq += v * v
				}
			}
			n := float64(blockSide * blockSide)
			mean := sum / n
			if sq/n-mean*mean > t.BlurBlockVariance {
				sharpBlocks++
			}
			blocks++
		}
	}
	if blocks == 0 {
		return Verdict{}, fmt.Errorf("no full blocks at side %d", blockSide)
	}
	sharpFraction := float64(sharpBlocks) / float64(blocks)
	voteVariance := sharpFraction < t.BlurSharpFraction

	// 3. Edge histogram: share of strong Laplacian responses.
	var strong int
	for _, v := range lap.pix {
		if math.Abs(v) > t.BlurEdgeResponse {
			strong++
		}
	}
	edgeFraction := float64(strong) / float64(len(lap.pix))
	voteEdges := edgeFraction < t.BlurEdgeFraction

	// 4. Gradient sum: total Sobel energy in each direction.
	gx := convolve3x3(gray, sobelXKernel)
	gy := convolve3x3(gray, sobelYKernel)
	var horizontal, vertical float64
	for i := range gx.pix {
		horizontal += math.Abs(gx.pix[i])
		vertical += math.Abs(gy.pix[i])
	}
	threshold := t.BlurGradientFactor * float64(w*h)
	voteGradient := horizontal < threshold && vertical < threshold

	// Motion blur: strongly anisotropic gradients with one weak direction.
	motion := false
	lo, hi := math.Min(horizontal, vertical), math.Max(horizontal, vertical)
	if lo > 0 && hi/lo > t.BlurMotionRatio && (horizontal < threshold || vertical < threshold) {
		motion = true
	}

	votes := 0
	for _, v := range []bool{voteSharpen, voteVariance, voteEdges, voteGradient} {
		if v {
			votes++
		}
	}

	diag := map[string]interface{}{
		"method":        "ensemble",
		"votes":         votes,
		"sharpenVote":   voteSharpen,
		"sharpenRatio":  sharpenRatio,
		"varianceVote":  voteVariance,
		"sharpFraction": sharpFraction,
		"edgeVote":      voteEdges,
		"edgeFraction":  edgeFraction,
		"gradientVote":  voteGradient,
		"gradientH":     horizontal,
		"gradientV":     vertical,
		"motionBlur":    motion,
	}

	if votes >= 2 || motion {
		return Rejected(CodeBlurryImageDetected, blurRejectMessage, diag), nil
	}
	return Accepted(diag), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
