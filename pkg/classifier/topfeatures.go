package classifier

import (
	"fmt"
	"sort"

	"recipe-lab/models"
)

// TopFeatures returns the n heaviest features for a label as "feature:count"
// strings, sorted by weight descending. Useful for inspecting what a trained
// model actually keys on.
func (m *Model) TopFeatures(label models.Label, n int) []string {
	type kv struct {
		Key   string
		Value float64
	}

	counts := m.FeatureCounts[label]
	ss := make([]kv, 0, len(counts))
	for k, v := range counts {
		ss = append(ss, kv{k, v})
	}

	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})

	limit := n
	if len(ss) < n {
		limit = len(ss)
	}
	if limit < 0 {
		limit = 0
	}

	features := make([]string, limit)
	for i := 0; i < limit; i++ {
		features[i] = fmt.Sprintf("%s:%g", ss[i].Key, ss[i].Value)
	}
	return features
}
