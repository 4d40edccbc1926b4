package threshold

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fftConvolver performs linear convolution of lines with a fixed kernel in the
// frequency domain. Plans are cached per transform length because rows and
// columns generally differ in length.
type fftConvolver struct {
	kernel []float64
	plans  map[int]*fftPlan
}

type fftPlan struct {
	fft         *fourier.FFT
	kernelCoeff []complex128
	buf         []float64
	coeff       []complex128
	seq         []float64
}

func newFFTConvolver(kernel []float64) *fftConvolver {
	return &fftConvolver{kernel: kernel, plans: make(map[int]*fftPlan)}
}

func (c *fftConvolver) plan(size int) *fftPlan {
	if p, ok := c.plans[size]; ok {
		return p
	}
	fft := fourier.NewFFT(size)

	// Kernel spectrum, zero padded to the transform length
	kbuf := make([]float64, size)
	copy(kbuf, c.kernel)
	p := &fftPlan{
		fft:         fft,
		kernelCoeff: fft.Coefficients(nil, kbuf),
		buf:         make([]float64, size),
		coeff:       make([]complex128, size/2+1),
		seq:         make([]float64, size),
	}
	c.plans[size] = p
	return p
}

// convolve matches convolveDirect. The line is extended by the kernel radius on
// both sides with the same reflection, convolved linearly, and the central
// n samples of the full convolution are returned.
func (c *fftConvolver) convolve(x, kernel []float64) []float64 {
	n := len(x)
	radius := len(kernel) / 2
	padded := n + 2*radius
	size := nextPow2(padded + len(kernel) - 1)
	p := c.plan(size)

	for j := range p.buf {
		p.buf[j] = 0
	}
	for j := 0; j < padded; j++ {
		p.buf[j] = x[reflect(j-radius, n)]
	}

	p.fft.Coefficients(p.coeff, p.buf)
	for k := range p.coeff {
		p.coeff[k] *= p.kernelCoeff[k]
	}
	// Sequence is not normalised
	p.fft.Sequence(p.seq, p.coeff)

	scale := 1 / float64(size)
	out := make([]float64, n)
	for i := range out {
		out[i] = p.seq[i+2*radius] * scale
	}
	return out
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
