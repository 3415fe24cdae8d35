package capture

import (
	"context"
	"image"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// grayPrecomp stores per-frame grayscale values and their summed-area tables
// (integral images). The integrals allow O(1) window sum and variance queries.
type grayPrecomp struct {
	gray       []float64 // per pixel grayscale (length W*H)
	integral   []float64 // summed-area table of grayscale
	integralSq []float64 // summed-area table of grayscale squared
	W, H       int
}

// Template is a grayscale reference image with cached statistics. It is
// immutable after construction and safe for concurrent use.
type Template struct {
	zero []float64 // gray - mean, row-major
	W, H int
	Mean float64
	Std  float64 // floored to 1 for flat templates
}

// NewTemplate converts img to grayscale (BT.601 weights, same as the frame
// path) and caches mean and standard deviation. Returns nil for empty input.
func NewTemplate(img image.Image) *Template {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	g := imaging.Grayscale(img)
	n := float64(w * h)
	vals := make([]float64, w*h)
	var sum float64
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w*4]
		for x := 0; x < w; x++ {
			v := float64(row[x*4])
			vals[y*w+x] = v
			sum += v
		}
	}
	mean := sum / n
	var sumZ2 float64
	for i, v := range vals {
		z := v - mean
		vals[i] = z
		sumZ2 += z * z
	}
	std := math.Sqrt(sumZ2 / n)
	if std <= 1e-9 {
		std = 1
	}
	return &Template{zero: vals, W: w, H: h, Mean: mean, Std: std}
}

// Area returns the template pixel count.
func (t *Template) Area() int {
	if t == nil {
		return 0
	}
	return t.W * t.H
}

// NCCOptions configures normalized cross-correlation template matching.
type NCCOptions struct {
	Threshold float64 // Minimum NCC score for a positive match
	Stride    int     // Coarse stride for scanning (default 1 = every offset)
	Refine    bool    // If true and Stride>1, do a refinement pass around best window
	Workers   int     // Row bands evaluated in parallel (default runtime.NumCPU)
}

// NCCResult holds the outcome of a template matching operation. X,Y are the
// top-left of the best window in frame coordinates.
type NCCResult struct {
	X, Y  int
	Score float64
	Found bool
	Dur   time.Duration
}

// better orders candidates: higher score first, then smallest (row, column).
func better(score float64, x, y int, best NCCResult) bool {
	if score != best.Score {
		return score > best.Score
	}
	if y != best.Y {
		return y < best.Y
	}
	return x < best.X
}

// MatchTemplate computes the TM_CCOEFF_NORMED score of t at every valid
// offset of frame and returns the maximum. Equal maxima resolve to the
// lexicographically smallest (row, column). Found reports Score >= Threshold.
func MatchTemplate(frame *image.RGBA, t *Template, opts NCCOptions) NCCResult {
	return MatchTemplateContext(context.Background(), frame, t, opts)
}

// MatchTemplateContext is MatchTemplate with cancellation. The scan checks
// ctx between rows; a cancelled scan returns Score -1 and Found false.
func MatchTemplateContext(ctx context.Context, frame *image.RGBA, t *Template, opts NCCOptions) NCCResult {
	start := time.Now()
	res := NCCResult{Score: -1}
	if frame == nil || t == nil {
		return res
	}
	fb := frame.Bounds()
	W, H := fb.Dx(), fb.Dy()
	if W < t.W || H < t.H {
		return res
	}
	pre := buildGrayPrecomp(frame)
	stride := opts.Stride
	if stride <= 0 {
		stride = 1
	}
	best := scanParallel(ctx, pre, t, 0, H-t.H, 0, W-t.W, stride, opts.Workers)
	if ctx.Err() != nil {
		res.Dur = time.Since(start)
		return res
	}
	if opts.Refine && stride > 1 && best.Score > -1 {
		minY := max(0, best.Y-stride)
		maxY := min(H-t.H, best.Y+stride)
		minX := max(0, best.X-stride)
		maxX := min(W-t.W, best.X+stride)
		fine := scanParallel(ctx, pre, t, minY, maxY, minX, maxX, 1, opts.Workers)
		if ctx.Err() != nil {
			res.Dur = time.Since(start)
			return res
		}
		if better(fine.Score, fine.X, fine.Y, best) {
			best = fine
		}
	}
	res.X, res.Y, res.Score = best.X+fb.Min.X, best.Y+fb.Min.Y, best.Score
	res.Found = best.Score >= opts.Threshold
	res.Dur = time.Since(start)
	return res
}

// scanParallel splits rows [minY..maxY] into bands and scans each band on its
// own goroutine. Bands are merged with the same ordering as a serial scan.
func scanParallel(ctx context.Context, pre *grayPrecomp, t *Template, minY, maxY, minX, maxX, stride, workers int) NCCResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	rows := (maxY-minY)/stride + 1
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		return scanBand(ctx, pre, t, minY, maxY, minX, maxX, stride)
	}
	per := (rows + workers - 1) / workers
	results := make([]NCCResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		y0 := minY + i*per*stride
		if y0 > maxY {
			results[i] = NCCResult{Score: -2}
			continue
		}
		y1 := min(maxY, y0+(per-1)*stride)
		wg.Add(1)
		go func(i, y0, y1 int) {
			defer wg.Done()
			results[i] = scanBand(ctx, pre, t, y0, y1, minX, maxX, stride)
		}(i, y0, y1)
	}
	wg.Wait()
	best := NCCResult{Score: -2}
	for _, r := range results {
		if r.Score > -2 && (best.Score == -2 || better(r.Score, r.X, r.Y, best)) {
			best = r
		}
	}
	return best
}

// scanBand scans rows y0..y1 in row-major order. Strict improvement keeps
// the first (smallest row, column) window among equal scores. It stops at
// the next row once ctx is done.
func scanBand(ctx context.Context, pre *grayPrecomp, t *Template, y0, y1, minX, maxX, stride int) NCCResult {
	best := NCCResult{Score: -2}
	w, h := t.W, t.H
	n := float64(w * h)
	W := pre.W
	for y := y0; y <= y1; y += stride {
		if ctx.Err() != nil {
			return best
		}
		for x := minX; x <= maxX; x += stride {
			sumF := integralSum(pre.integral, W, x, y, x+w-1, y+h-1)
			sumF2 := integralSum(pre.integralSq, W, x, y, x+w-1, y+h-1)
			varF := (sumF2 - sumF*sumF/n) / n
			score := 0.0
			if varF > 1e-6 {
				var numer float64
				for py := 0; py < h; py++ {
					frow := pre.gray[(y+py)*W+x : (y+py)*W+x+w]
					trow := t.zero[py*w : py*w+w]
					for px, tv := range trow {
						numer += frow[px] * tv
					}
				}
				denom := n * math.Sqrt(varF) * t.Std
				if denom > 0 {
					score = numer / denom
				}
			}
			if best.Score == -2 || better(score, x, y, best) {
				best = NCCResult{X: x, Y: y, Score: score}
			}
		}
	}
	return best
}

// luma converts 8-bit RGB to gray with BT.601 weights, rounded like an
// 8-bit grayscale conversion.
func luma(r, g, b uint8) float64 {
	return math.Floor(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b) + 0.5)
}

// buildGrayPrecomp computes per-pixel grayscale values and their summed-area
// tables for a frame.
func buildGrayPrecomp(frame *image.RGBA) *grayPrecomp {
	b := frame.Bounds()
	W, H := b.Dx(), b.Dy()
	need := W * H
	p := &grayPrecomp{
		gray:       make([]float64, need),
		integral:   make([]float64, need),
		integralSq: make([]float64, need),
		W:          W,
		H:          H,
	}
	for y := 0; y < H; y++ {
		var rowSum, rowSum2 float64
		row := frame.Pix[y*frame.Stride : y*frame.Stride+W*4]
		for x := 0; x < W; x++ {
			gray := luma(row[x*4], row[x*4+1], row[x*4+2])
			off := y*W + x
			p.gray[off] = gray
			rowSum += gray
			rowSum2 += gray * gray
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[(y-1)*W+x] + rowSum
				p.integralSq[off] = p.integralSq[(y-1)*W+x] + rowSum2
			}
		}
	}
	return p
}

// integralSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1]
// from an integral image stored in row-major order with width W.
func integralSum(I []float64, W int, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	A := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return I[y*W+x]
	}
	return A(x1, y1) - A(x0-1, y1) - A(x1, y0-1) + A(x0-1, y0-1)
}
