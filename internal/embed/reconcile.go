package embed

// ReconcileDimensions resizes a vector to exactly target elements: longer
// vectors are truncated, shorter ones are zero-padded. The same policy must
// be applied at ingestion and at query time; mixing policies silently
// degrades similarity search. The input is never mutated.
func ReconcileDimensions(vec []float32, target int) []float32 {
	if target <= 0 {
		return nil
	}
	out := make([]float32, target)
	copy(out, vec)
	return out
}
