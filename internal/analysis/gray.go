package analysis

import (
	"bytes"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// grayBuf is a grayscale working buffer with values in [0, 255].
type grayBuf struct {
	w, h int
	pix  []float64
}

func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// grayFrom converts an image into a luma buffer using the JPEG weights.
func grayFrom(img image.Image) *grayBuf {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	buf := &grayBuf{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			r := float64(row[x*4])
			g := float64(row[x*4+1])
			b := float64(row[x*4+2])
			buf.pix[y*w+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return buf
}

func (g *grayBuf) at(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= g.w {
		x = g.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.h {
		y = g.h - 1
	}
	return g.pix[y*g.w+x]
}

func (g *grayBuf) meanStdDev() (float64, float64) {
	if len(g.pix) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range g.pix {
		sum += v
	}
	mean := sum / float64(len(g.pix))
	var sq float64
	for _, v := range g.pix {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(g.pix)))
}

// convolve3x3 applies a 3x3 kernel with edge replication. The output is the
// raw signed response; callers clamp or take absolutes as needed.
func convolve3x3(g *grayBuf, k [9]float64) *grayBuf {
	out := &grayBuf{w: g.w, h: g.h, pix: make([]float64, g.w*g.h)}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			v := k[0]*g.at(x-1, y-1) + k[1]*g.at(x, y-1) + k[2]*g.at(x+1, y-1) +
				k[3]*g.at(x-1, y) + k[4]*g.at(x, y) + k[5]*g.at(x+1, y) +
				k[6]*g.at(x-1, y+1) + k[7]*g.at(x, y+1) + k[8]*g.at(x+1, y+1)
			out.pix[y*g.w+x] = v
		}
	}
	return out
}

func (g *grayBuf) clamped() *grayBuf {
	out := &grayBuf{w: g.w, h: g.h, pix: make([]float64, len(g.pix))}
	for i, v := range g.pix {
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out.pix[i] = v
	}
	return out
}

// colorStdDev averages the per-channel standard deviation over R, G and B.
func colorStdDev(img image.Image) float64 {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	n := float64(w * h)
	if n == 0 {
		return 0
	}
	var sum, sq [3]float64
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := float64(row[x*4+c])
				sum[c] += v
				sq[c] += v * v
			}
		}
	}
	var total float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance := sq[c]/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		total += math.Sqrt(variance)
	}
	return total / 3
}
