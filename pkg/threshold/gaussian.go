package threshold

import "math"

// Method selects how the Gaussian convolution is evaluated.
type Method int

const (
	// Auto uses direct convolution for short kernels and FFT for long ones.
	Auto Method = iota
	// Direct evaluates the convolution sum in the spatial domain.
	Direct
	// FFT multiplies spectra computed with gonum's real FFT.
	FFT
)

// fftMinTaps is the kernel length above which Auto switches to FFT.
const fftMinTaps = 65

// GaussianKernel returns a normalised, symmetric kernel of radius
// ceil(truncate*sigma), capped at MaxKernelRadius. A zero sigma yields the
// identity kernel [1].
func GaussianKernel(sigma, truncate float64) []float64 {
	if sigma <= 0 || math.IsNaN(sigma) || math.IsNaN(truncate) || truncate <= 0 {
		return []float64{1}
	}
	radius := int(math.Min(math.Ceil(truncate*sigma), MaxKernelRadius))
	kernel := make([]float64, 2*radius+1)

	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Smooth applies a separable Gaussian of scale sigma to an h*w row-major
// buffer, first along rows and then along columns. The input is not modified.
func Smooth(data []float64, height, width int, sigma, truncate float64, method Method) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if sigma == 0 {
		return out
	}

	kernel := GaussianKernel(sigma, truncate)
	useFFT := method == FFT || (method == Auto && len(kernel) > fftMinTaps)

	convolve := convolveDirect
	if useFFT {
		convolve = newFFTConvolver(kernel).convolve
	}

	// Rows (axis 1)
	line := make([]float64, width)
	for r := 0; r < height; r++ {
		copy(line, out[r*width:(r+1)*width])
		res := convolve(line, kernel)
		copy(out[r*width:(r+1)*width], res)
	}

	// Columns (axis 0)
	line = make([]float64, height)
	for c := 0; c < width; c++ {
		for r := 0; r < height; r++ {
			line[r] = out[r*width+c]
		}
		res := convolve(line, kernel)
		for r := 0; r < height; r++ {
			out[r*width+c] = res[r]
		}
	}

	return out
}

// convolveDirect convolves x with a symmetric kernel using half-sample
// symmetric reflection at the borders.
func convolveDirect(x, kernel []float64) []float64 {
	n := len(x)
	radius := len(kernel) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for t := -radius; t <= radius; t++ {
			sum += kernel[t+radius] * x[reflect(i+t, n)]
		}
		out[i] = sum
	}
	return out
}

// reflect maps an index onto [0, n) by mirroring about the half-sample
// boundaries: ... c b a | a b c | c b a ...
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
