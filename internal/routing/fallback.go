package routing

import (
	"strings"

	"worldbuilder-agent/internal/domain"
)

// Catalog is the read-only view of the capability registry used by routing.
type Catalog interface {
	List() []domain.Capability
	Names() []string
	Has(name string) bool
	Default() (domain.Capability, bool)
}

// CapabilityScore is the keyword hit count of one capability.
type CapabilityScore struct {
	Name string
	Hits int
}

// KeywordClassifier picks a capability by counting keyword occurrences in
// the request text. It holds no state and never calls the oracle.
type KeywordClassifier struct{}

// Scores returns one score per capability in registration order. Each
// keyword contributes the number of times it occurs in the lower-cased
// input; there is no stemming.
func (KeywordClassifier) Scores(input string, caps []domain.Capability) []CapabilityScore {
	text := strings.ToLower(input)
	scores := make([]CapabilityScore, 0, len(caps))
	for _, c := range caps {
		hits := 0
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			hits += strings.Count(text, kw)
		}
		scores = append(scores, CapabilityScore{Name: c.Name, Hits: hits})
	}
	return scores
}

// Classify returns the capability with the strictly highest score. When all
// scores are equal, zero included, the catalog's default wins. Ties between
// the top scores go to the earliest registered capability. An empty catalog
// yields "".
func (k KeywordClassifier) Classify(input string, catalog Catalog) string {
	scores := k.Scores(input, catalog.List())
	if len(scores) == 0 {
		return ""
	}
	if allEqual(scores) {
		if def, ok := catalog.Default(); ok {
			return def.Name
		}
		return scores[0].Name
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Hits > best.Hits {
			best = s
		}
	}
	return best.Name
}

func allEqual(scores []CapabilityScore) bool {
	for _, s := range scores[1:] {
		if s.Hits != scores[0].Hits {
			return false
		}
	}
	return true
}
