package spsa

// pool holds the per-run vector buffers, one per role. Buffers are sized to
// the problem dimension at the start of a run and reused afterwards.
type pool struct {
	gx       []float64 // fast gradient average
	slowGx   []float64 // slow gradient average
	squareGx []float64 // second moment of the slow average
	dx       []float64 // step direction
	ndx      []float64 // perturbation, then gradient sample
	xAvg     []float64 // weighted trajectory average
	xBest    []float64 // best averaged point
	scratch  []float64 // candidate evaluation points
	prev     []float64 // point before the last step
}

func (p *pool) buffers() []*[]float64 {
	return []*[]float64{
		&p.gx, &p.slowGx, &p.squareGx, &p.dx, &p.ndx,
		&p.xAvg, &p.xBest, &p.scratch, &p.prev,
	}
}

// reset sizes every buffer to n and zeroes it, reusing capacity when possible.
func (p *pool) reset(n int) {
	for _, b := range p.buffers() {
		if cap(*b) < n {
			*b = make([]float64, n)
			continue
		}
		*b = (*b)[:n]
		clear(*b)
	}
}
