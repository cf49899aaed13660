// Package render convolves source signals with simulated impulse
// responses and prepares the mixed result for audio output.
package render

import (
	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT convolution constants.
const (
	// minKernelForFFT is the impulse-response length below which direct
	// SIMD convolution beats the FFT path. Room responses are typically
	// tens of thousands of samples, so the FFT path dominates in
	// practice; the direct path serves short probe responses and tests.
	minKernelForFFT = 400

	// defaultFFTBlockSize is the smallest FFT size considered (power of 2).
	defaultFFTBlockSize = 512

	// fftHermitianDivisor: a real FFT of size N has N/2 + 1 unique
	// complex coefficients.
	fftHermitianDivisor = 2
)

// Convolve computes the full linear convolution of signal with kernel.
// The output has length len(signal) + len(kernel) - 1; there is no
// circular wraparound. Either input may be empty, yielding an empty
// result.
func Convolve(signal, kernel []float64) []float64 {
	n, m := len(signal), len(kernel)
	if n == 0 || m == 0 {
		return nil
	}

	// Full convolution over a signal zero-padded by m-1 on each side: the
	// valid region is exactly the n+m-1 full-convolution samples.
	padded := make([]float64, n+2*(m-1))
	copy(padded[m-1:], signal)

	dst := make([]float64, n+m-1)

	if m < minKernelForFFT {
		// f64.ConvolveValid is a sliding dot product (correlation), so the
		// kernel is reversed to obtain convolution.
		reversed := make([]float64, m)
		for i := range kernel {
			reversed[i] = kernel[m-1-i]
		}
		f64.ConvolveValid(dst, padded, reversed)
		return dst
	}

	newFFTConvolver(kernel).convolve(dst, padded)
	return dst
}

// fftConvolver performs overlap-save FFT convolution, O(N log N) against
// O(N·M) for the direct form.
//
// Overlap-save method:
//  1. Process input in blocks of fftSize samples (with kernelLen-1 overlap)
//  2. Each block produces blockSize = fftSize - kernelLen + 1 valid samples
//  3. The first kernelLen-1 samples of each block are discarded (circular wrap)
type fftConvolver struct {
	fft       *fourier.FFT
	fftSize   int
	blockSize int // valid output samples per block

	kernelFFT []complex128 // precomputed kernel spectrum
	kernelLen int
	scale     float64 // 1/fftSize; gonum's inverse transform is unnormalized

	signalBlock []float64
	signalFFT   []complex128
	productFFT  []complex128
	ifftResult  []float64
}

func newFFTConvolver(kernel []float64) *fftConvolver {
	kernelLen := len(kernel)

	// Next power of 2 >= 2*kernelLen keeps the discarded overlap below
	// half of each block.
	fftSize := defaultFFTBlockSize
	for fftSize < 2*kernelLen {
		fftSize *= 2
	}

	blockSize := fftSize - kernelLen + 1
	fft := fourier.NewFFT(fftSize)

	// Circular convolution of each block with the zero-padded kernel
	// yields linear convolution samples past the kernelLen-1 wraparound
	// region, which convolve discards per block.
	kernelPadded := make([]float64, fftSize)
	copy(kernelPadded, kernel)
	kernelFFT := fft.Coefficients(nil, kernelPadded)

	fftLen := fftSize/fftHermitianDivisor + 1

	return &fftConvolver{
		fft:         fft,
		fftSize:     fftSize,
		blockSize:   blockSize,
		kernelFFT:   kernelFFT,
		kernelLen:   kernelLen,
		scale:       1.0 / float64(fftSize),
		signalBlock: make([]float64, fftSize),
		signalFFT:   make([]complex128, fftLen),
		productFFT:  make([]complex128, fftLen),
		ifftResult:  make([]float64, fftSize),
	}
}

// convolve writes the valid linear convolution of signal with the kernel
// into dst. len(dst) must be len(signal) - kernelLen + 1.
func (c *fftConvolver) convolve(dst, signal []float64) {
	signalLen := len(signal)
	outputLen := signalLen - c.kernelLen + 1
	if outputLen <= 0 || len(dst) < outputLen {
		return
	}

	overlap := c.kernelLen - 1
	outIdx := 0

	for outIdx < outputLen {
		for i := range c.signalBlock {
			c.signalBlock[i] = 0
		}

		copyLen := c.fftSize
		if outIdx+copyLen > signalLen {
			copyLen = signalLen - outIdx
		}
		if copyLen > 0 {
			copy(c.signalBlock, signal[outIdx:outIdx+copyLen])
		}

		c.signalFFT = c.fft.Coefficients(c.signalFFT, c.signalBlock)
		c128.Mul(c.productFFT, c.signalFFT, c.kernelFFT)
		c.ifftResult = c.fft.Sequence(c.ifftResult, c.productFFT)
		f64.Scale(c.ifftResult, c.ifftResult, c.scale)

		validSamples := c.blockSize
		if outIdx+validSamples > outputLen {
			validSamples = outputLen - outIdx
		}

		copy(dst[outIdx:outIdx+validSamples], c.ifftResult[overlap:overlap+validSamples])
		outIdx += validSamples
	}
}
