package vec

import (
	"log/slog"
	"math"

	"golang.org/x/sys/cpu"
)

// Chunked reductions over float64 slices.
//
// Reductions walk the input in fixed-width chunks of Lanes elements. The
// products inside one chunk are summed left to right, and chunk sums are then
// accumulated in order. A short tail chunk behaves as if it were zero padded.
// Floating-point addition is not associative, so every backend must keep this
// exact order: results are bit-identical regardless of which kernel runs.
//
// Backends:
//   - unrolled: explicit 4-lane body, selected on CPUs with wide vector units
//   - scalar:   plain nested loop, portable fallback and reference

// Lanes is the chunk width used by all reductions.
const Lanes = 4

// Backend indicates which reduction kernel is active
type Backend int

const (
	BackendScalar   Backend = iota // Portable nested loop
	BackendUnrolled                // Explicit 4-lane body
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendUnrolled:
		return "unrolled"
	default:
		return "unknown"
	}
}

// ActiveBackend reports which kernel was selected at initialization
var ActiveBackend Backend

// dotKernel is the runtime-dispatched dot product.
var dotKernel func(a, b []float64) float64

func init() {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		ActiveBackend = BackendUnrolled
		dotKernel = dotUnrolled
		slog.Debug("Vector kernel initialized", "backend", "unrolled", "lanes", Lanes)
	} else {
		ActiveBackend = BackendScalar
		dotKernel = dotScalar
		slog.Debug("Vector kernel initialized", "backend", "scalar", "reason", "no wide vector unit")
	}
}

// Dot returns the chunked dot product of a and b.
// Only the first min(len(a), len(b)) elements take part.
func Dot(a, b []float64) float64 {
	if len(b) < len(a) {
		a = a[:len(b)]
	}
	return dotKernel(a, b[:len(a)])
}

// Norm2 returns the squared Euclidean norm of a.
func Norm2(a []float64) float64 {
	return dotKernel(a, a)
}

// Norm returns the Euclidean norm of a.
func Norm(a []float64) float64 {
	return math.Sqrt(Norm2(a))
}

// Cosine returns the cosine similarity of a and b.
// Vectors whose squared norms multiply to less than 1e-6 have no usable
// direction and yield 0.
func Cosine(a, b []float64) float64 {
	n1 := Norm2(a)
	n2 := Norm2(b)

	if n1*n2 < 1e-6 {
		return 0
	}

	return Dot(a, b) / math.Sqrt(n1*n2)
}

// NaNToZero maps NaN to 0 and returns every other value unchanged.
func NaNToZero(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// CompareBackends reports whether both kernels agree bit for bit on a and b.
func CompareBackends(a, b []float64) bool {
	return math.Float64bits(dotScalar(a, b)) == math.Float64bits(dotUnrolled(a, b))
}
