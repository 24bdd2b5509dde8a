package sweep

import (
	"github.com/hupe1980/vecbench/index"
)

// Axis is one named hyperparameter and the values to try, in order.
type Axis struct {
	Name   string
	Values []int
}

// Grid is an ordered list of axes. The first axis varies slowest.
type Grid []Axis

// Names returns the axis names in order.
func (g Grid) Names() []string {
	names := make([]string, len(g))
	for i, a := range g {
		names[i] = a.Name
	}
	return names
}

// Size returns the number of combinations without enumerating them.
func (g Grid) Size() int {
	n := 1
	for _, a := range g {
		n *= len(a.Values)
	}
	return n
}

// Combinations enumerates the Cartesian product of the axes, first axis
// outermost and last axis innermost. Any empty axis yields no combinations;
// an empty grid yields a single empty combination.
func (g Grid) Combinations() []index.Params {
	n := g.Size()
	if n == 0 {
		return nil
	}
	out := make([]index.Params, 0, n)
	idx := make([]int, len(g))
	for {
		p := make(index.Params, len(g))
		for i, a := range g {
			p[a.Name] = a.Values[idx[i]]
		}
		out = append(out, p)

		// Odometer increment from the innermost axis.
		i := len(g) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}
