package inference

// RawPrediction is the model's per-class probability vector for one input, in
// model output order.
type RawPrediction []float64

// Max returns the peak probability and its index. The first maximum wins on
// ties; an empty vector yields index -1.
func (p RawPrediction) Max() (float64, int) {
	if len(p) == 0 {
		return 0, -1
	}
	best, idx := p[0], 0
	for i := 1; i < len(p); i++ {
		if p[i] > best {
			best, idx = p[i], i
		}
	}
	return best, idx
}
