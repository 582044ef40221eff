// Package vecmath holds the vector arithmetic shared by the text, image and detection scorers.
package vecmath

import "math"

// Float is any element type an embedding may use
type Float interface {
	~float32 | ~float64
}

// Cosine returns dot(a,b)/(|a|*|b|).
// Returns 0 when lengths differ, either vector is empty, or either norm is 0.
func Cosine[T Float](a, b []T) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push identical vectors a hair past 1
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// Normalize returns a unit-length copy of v, or a zero copy if v has no magnitude
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| over case-sensitive string sets.
// Two empty sets have overlap 0.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Percent converts a 0..1 similarity to an integer 0..100
func Percent(sim float64) int {
	p := int(math.Round(sim * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
