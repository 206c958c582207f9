package problem

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Problem is a named objective to maximize.
type Problem struct {
	Name        string
	Description string
	Dim         int

	// Start is the default starting point for SPSA runs.
	Start []float64

	// Lower and Upper bound the search box used by population methods.
	Lower []float64
	Upper []float64

	// Optimum is the known maximizer. Value is the objective there.
	Optimum []float64
	Value   float64

	// Eval returns the objective, or NaN outside the feasible region.
	Eval func(x []float64) float64
}

// UnknownError is returned by Lookup for names that are not registered.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown problem %q (available: %s)", e.Name, strings.Join(Names(), ", "))
}

func (e *UnknownError) Is(target error) bool {
	_, ok := target.(*UnknownError)
	return ok
}

// DimensionError is returned when a problem does not support the requested
// dimension.
type DimensionError struct {
	Name string
	Dim  int
	Min  int
	Max  int
}

func (e *DimensionError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("problem %s requires dimension %d, got %d", e.Name, e.Min, e.Dim)
	}
	return fmt.Sprintf("problem %s requires dimension >= %d, got %d", e.Name, e.Min, e.Dim)
}

type definition struct {
	description string
	minDim      int
	maxDim      int // 0 = unbounded
	defaultDim  int
	build       func(dim int) Problem
}

var registry = map[string]definition{
	"paraboloid": {
		description: "1 - (x+1)^2 - (y-1)^2, maximum 1 at (-1, 1)",
		minDim:      2, maxDim: 2, defaultDim: 2,
		build: func(int) Problem {
			return Problem{
				Start:   []float64{0, 0},
				Lower:   []float64{-5, -5},
				Upper:   []float64{5, 5},
				Optimum: []float64{-1, 1},
				Value:   1,
				Eval: func(x []float64) float64 {
					return 1 - (x[0]+1)*(x[0]+1) - (x[1]-1)*(x[1]-1)
				},
			}
		},
	},
	"bounded": {
		description: "x + y on the triangle x, y >= 0, x + y <= 10; NaN outside",
		minDim:      2, maxDim: 2, defaultDim: 2,
		build: func(int) Problem {
			return Problem{
				Start:   []float64{1, 1},
				Lower:   []float64{0, 0},
				Upper:   []float64{10, 10},
				Optimum: []float64{5, 5},
				Value:   10,
				Eval:    bounded,
			}
		},
	},
	"sphere": {
		description: "-sum(x_i^2), maximum 0 at the origin",
		minDim:      1, defaultDim: 5,
		build: func(dim int) Problem {
			return Problem{
				Start:   filled(dim, 3),
				Lower:   filled(dim, -10),
				Upper:   filled(dim, 10),
				Optimum: make([]float64, dim),
				Value:   0,
				Eval:    sphere,
			}
		},
	},
	"rosenbrock": {
		description: "negated Rosenbrock valley, maximum 0 at (1, ..., 1)",
		minDim:      2, defaultDim: 2,
		build: func(dim int) Problem {
			return Problem{
				Start:   filled(dim, -1),
				Lower:   filled(dim, -5),
				Upper:   filled(dim, 5),
				Optimum: filled(dim, 1),
				Value:   0,
				Eval:    rosenbrock,
			}
		},
	},
	"rastrigin": {
		description: "negated Rastrigin, many local maxima, global maximum 0 at the origin",
		minDim:      1, defaultDim: 2,
		build: func(dim int) Problem {
			return Problem{
				Start:   filled(dim, 2.5),
				Lower:   filled(dim, -5.12),
				Upper:   filled(dim, 5.12),
				Optimum: make([]float64, dim),
				Value:   0,
				Eval:    rastrigin,
			}
		},
	},
}

// Names returns the registered problem names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the one-line description of a registered problem.
func Describe(name string) (string, error) {
	def, ok := registry[name]
	if !ok {
		return "", &UnknownError{Name: name}
	}
	return def.description, nil
}

// DefaultDim returns the dimension used when none is requested.
func DefaultDim(name string) (int, error) {
	def, ok := registry[name]
	if !ok {
		return 0, &UnknownError{Name: name}
	}
	return def.defaultDim, nil
}

// Lookup builds the named problem. dim 0 selects the problem's default
// dimension.
func Lookup(name string, dim int) (*Problem, error) {
	def, ok := registry[name]
	if !ok {
		return nil, &UnknownError{Name: name}
	}

	if dim == 0 {
		dim = def.defaultDim
	}
	if dim < def.minDim || (def.maxDim > 0 && dim > def.maxDim) {
		return nil, &DimensionError{Name: name, Dim: dim, Min: def.minDim, Max: def.maxDim}
	}

	p := def.build(dim)
	p.Name = name
	p.Description = def.description
	p.Dim = dim
	return &p, nil
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func bounded(x []float64) float64 {
	if x[0] < 0 || x[1] < 0 {
		return math.NaN()
	}
	v := x[0] + x[1]
	if v > 10 {
		return math.NaN()
	}
	return v
}

func sphere(x []float64) float64 {
	return -floats.Dot(x, x)
}

func rosenbrock(x []float64) float64 {
	var s float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		s += 100*a*a + b*b
	}
	return -s
}

func rastrigin(x []float64) float64 {
	s := 10 * float64(len(x))
	for _, v := range x {
		s += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return -s
}
