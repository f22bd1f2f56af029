package storage

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
//
// Vectors of different length, or with a zero norm, have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortByScore sorts points by descending score and keeps at most limit of them.
//
// Ties keep their input order so results are deterministic for a given scan order.
func SortByScore(points []*ScoredPoint, limit int) []*ScoredPoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Score > points[j].Score
	})

	if limit >= 0 && len(points) > limit {
		return points[:limit]
	}
	return points
}

// VectorToString converts a vector to the "[0.1,0.2,0.3]" text form
// accepted by pgvector and OceanBase VECTOR columns.
func VectorToString(vector []float32) string {
	if len(vector) == 0 {
		return "[]"
	}

	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// ParseVectorString is the inverse of VectorToString.
func ParseVectorString(s string) ([]float32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []float32{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		result[i] = float32(v)
	}

	return result, nil
}

// RegistryTable is the table SQL backends use to record collection schemas.
const RegistryTable = "ltm__registry"

// TableName maps a collection name to a SQL identifier safe for every SQL backend.
//
// Names made only of lowercase letters, digits and underscores map to
// "ltm_<name>". Anything else, or names longer than maxLen, is sanitized and
// suffixed with a hash of the original so distinct collections never share a
// table. A name that would land on RegistryTable is suffixed too.
func TableName(collection string, maxLen int) string {
	var b strings.Builder
	clean := true
	for _, r := range collection {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			clean = false
		default:
			b.WriteByte('_')
			clean = false
		}
	}

	name := "ltm_" + b.String()
	if clean && len(name) <= maxLen && name != RegistryTable {
		return name
	}

	suffix := fmt.Sprintf("_%08x", fnv32(collection))
	if len(name)+len(suffix) > maxLen {
		name = name[:maxLen-len(suffix)]
	}
	return name + suffix
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
