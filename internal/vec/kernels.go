package vec

// dotScalar is the reference kernel: one chunk at a time, lanes summed in order.
//
// Products are converted explicitly so the compiler cannot fuse them into the
// following addition; a fused multiply-add would break bit equality with
// dotUnrolled.
func dotScalar(a, b []float64) float64 {
	var sum float64

	for base := 0; base < len(a); base += Lanes {
		end := base + Lanes
		if end > len(a) {
			end = len(a)
		}

		var chunk float64
		for i := base; i < end; i++ {
			chunk += float64(a[i] * b[i])
		}
		sum += chunk
	}

	return sum
}

// dotUnrolled processes full chunks with an explicit 4-lane body and hands
// the tail to the same ordered loop as dotScalar.
func dotUnrolled(a, b []float64) float64 {
	var sum float64

	n := len(a)
	full := n - n%Lanes
	b = b[:n]

	i := 0
	for ; i < full; i += Lanes {
		p0 := float64(a[i] * b[i])
		p1 := float64(a[i+1] * b[i+1])
		p2 := float64(a[i+2] * b[i+2])
		p3 := float64(a[i+3] * b[i+3])
		sum += ((p0 + p1) + p2) + p3
	}

	if i < n {
		var chunk float64
		for ; i < n; i++ {
			chunk += float64(a[i] * b[i])
		}
		sum += chunk
	}

	return sum
}
