package analysis

import (
	"errors"
	"math"
	"math/cmplx"
)

var ErrTooShort = errors.New("analysis: not enough samples")

// FFT is a radix-2 transform; len(data) must be a power of two.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	if n%2 != 0 {
		panic("fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)

	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}

	return result
}

// PowerSpectrum returns the magnitude of the first half of the transform.
func PowerSpectrum(data []float64) []float64 {
	fft := FFT(data)
	ps := make([]float64, len(fft)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}

	return ps
}

// Resample linearly interpolates (times, values) onto n evenly spaced
// instants covering the same span. times must be increasing.
func Resample(times, values []float64, n int) []float64 {
	out := make([]float64, n)
	if len(times) == 0 || n == 0 {
		return out
	}
	t0, t1 := times[0], times[len(times)-1]
	j := 0
	for i := range out {
		t := t0
		if n > 1 {
			t = t0 + (t1-t0)*float64(i)/float64(n-1)
		}
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		if j+1 >= len(times) || times[j+1] == times[j] {
			out[i] = values[j]
			continue
		}
		f := (t - times[j]) / (times[j+1] - times[j])
		out[i] = values[j] + f*(values[j+1]-values[j])
	}
	return out
}

// NextPow2 is the smallest power of two not below n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Spectrum is a one-sided power spectrum with bin frequencies in Hz.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// Dominant returns the frequency of the strongest non-DC bin.
func (s Spectrum) Dominant() float64 {
	best, f := 0.0, 0.0
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > best {
			best, f = s.Power[i], s.Freqs[i]
		}
	}
	return f
}

// SeriesSpectrum resamples an unevenly timed series to a power-of-two
// length, removes its mean and transforms it.
func SeriesSpectrum(times, values []float64) (Spectrum, error) {
	if len(times) < 4 || len(times) != len(values) {
		return Spectrum{}, ErrTooShort
	}
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		return Spectrum{}, ErrTooShort
	}

	n := NextPow2(len(times))
	data := Resample(times, values, n)
	var mean float64
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	for i := range data {
		data[i] -= mean
	}

	// n samples spread over span: the sample interval is span/(n-1).
	rate := float64(n-1) / span
	ps := PowerSpectrum(data)
	freqs := make([]float64, len(ps))
	for i := range freqs {
		freqs[i] = float64(i) * rate / float64(n)
	}
	return Spectrum{Freqs: freqs, Power: ps}, nil
}
