// Package similarity ranks stored note embeddings against a query vector.
package similarity

import (
	"math"
	"sort"

	"github.com/starford/ansuz/internal/models"
)

// Result is one ranked note.
type Result struct {
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
}

// Cosine returns dot(a,b)/(|a|·|b|). Zero-magnitude vectors, mismatched
// lengths and non-finite results yield 0.
func Cosine(a, b []float32) float64 {
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
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// Search scores every candidate against query and returns them best first.
// Equal scores keep candidate order. limit <= 0 returns all results.
func Search(query []float32, candidates []models.Candidate, limit int) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{Path: c.Path, Similarity: Cosine(query, c.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
