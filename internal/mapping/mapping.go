// =============================================================================
// Ledger Normalizer - Mapping Resolver
// =============================================================================
//
// The resolver turns a client key and the reference table into the effective
// original-column -> canonical-column mapping for that client.
//
// PRECEDENCE:
//   1. Rules whose client field matches the client key (see Matcher). Within
//      the matched rules the last rule for an original name wins.
//   2. When nothing matches: the generic mapping. Canonical names are visited
//      in registry order and every rule targeting the name contributes its
//      original name unless an earlier canonical name already claimed it.
//   3. Manual overrides for the exact client key, applied last.
//
// An unknown client is never an error; it gets the generic mapping (or an
// empty one when the reference table is empty) plus its overrides.
//
// =============================================================================

package mapping

import (
	"log/slog"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
)

// Rule is one row of the reference table.
type Rule struct {
	Client    string
	Original  string
	Canonical string
}

// =============================================================================
// ORDERED MAPPING
// =============================================================================

// Pair is one original -> canonical entry.
type Pair struct {
	Original  string
	Canonical string
}

// Mapping is an original -> canonical map that remembers insertion order.
// Overwriting a key keeps its original position.
type Mapping struct {
	keys    []string
	targets map[string]string
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{targets: make(map[string]string)}
}

// Set maps original to canonical.
func (m *Mapping) Set(original, canonical string) {
	if _, exists := m.targets[original]; !exists {
		m.keys = append(m.keys, original)
	}
	m.targets[original] = canonical
}

// Get returns the canonical name for original.
func (m *Mapping) Get(original string) (string, bool) {
	canonical, ok := m.targets[original]
	return canonical, ok
}

// Has reports whether original is mapped.
func (m *Mapping) Has(original string) bool {
	_, ok := m.targets[original]
	return ok
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Pairs returns the entries in insertion order.
func (m *Mapping) Pairs() []Pair {
	pairs := make([]Pair, len(m.keys))
	for i, key := range m.keys {
		pairs[i] = Pair{Original: key, Canonical: m.targets[key]}
	}
	return pairs
}

// =============================================================================
// RESOLVER
// =============================================================================

// Source tells which precedence step produced the bulk of a mapping.
type Source string

const (
	// SourceDirect means client-specific rules matched.
	SourceDirect Source = "direct"
	// SourceGeneric means the generic fallback was used.
	SourceGeneric Source = "generic"
)

// Resolution is a mapping plus how it was obtained.
type Resolution struct {
	Client           string
	Mapping          *Mapping
	Source           Source
	MatchedRules     int
	OverridesApplied int
}

// Resolver resolves per-client mappings. It holds no per-run state and can
// be reused for every client of a run.
type Resolver struct {
	registry  *schema.Registry
	matcher   Matcher
	overrides map[string][]Rule
	logger    *slog.Logger
}

// NewResolver creates a resolver.
//
// PARAMETERS:
//   - registry: The canonical schema; its declaration order drives the
//     generic fallback.
//   - matcher: Selects the reference rows belonging to a client.
//   - overrides: Manual corrections keyed by exact client name.
//   - logger: Receives one debug record per resolution. May be nil.
func NewResolver(registry *schema.Registry, matcher Matcher, overrides []config.OverrideRule, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	byClient := make(map[string][]Rule)
	for _, o := range overrides {
		byClient[o.Client] = append(byClient[o.Client], Rule{Client: o.Client, Original: o.Original, Canonical: o.Canonical})
	}

	return &Resolver{
		registry:  registry,
		matcher:   matcher,
		overrides: byClient,
		logger:    logger,
	}
}

// Resolve returns the effective mapping for clientKey.
func (r *Resolver) Resolve(clientKey string, rules []Rule) *Mapping {
	return r.Explain(clientKey, rules).Mapping
}

// Explain resolves the mapping for clientKey and reports how it was built.
func (r *Resolver) Explain(clientKey string, rules []Rule) Resolution {
	res := Resolution{Client: clientKey, Mapping: NewMapping()}

	var matched []Rule
	for _, rule := range rules {
		if r.matcher.Match(clientKey, rule.Client) {
			matched = append(matched, rule)
		}
	}
	res.MatchedRules = len(matched)

	if len(matched) > 0 {
		res.Source = SourceDirect
		for _, rule := range matched {
			res.Mapping.Set(rule.Original, rule.Canonical)
		}
	} else {
		res.Source = SourceGeneric
		r.applyGeneric(res.Mapping, rules)
	}

	for _, o := range r.overrides[clientKey] {
		res.Mapping.Set(o.Original, o.Canonical)
		res.OverridesApplied++
	}

	r.logger.Debug("resolved column mapping",
		slog.String("client", clientKey),
		slog.String("matcher", r.matcher.Name()),
		slog.String("source", string(res.Source)),
		slog.Int("matched_rules", res.MatchedRules),
		slog.Int("overrides", res.OverridesApplied),
		slog.Int("entries", res.Mapping.Len()))

	return res
}

// applyGeneric builds the first-claim-wins mapping across all clients.
func (r *Resolver) applyGeneric(m *Mapping, rules []Rule) {
	byCanonical := make(map[string][]Rule)
	for _, rule := range rules {
		byCanonical[rule.Canonical] = append(byCanonical[rule.Canonical], rule)
	}

	for _, canonical := range r.registry.Columns() {
		for _, rule := range byCanonical[canonical] {
			if !m.Has(rule.Original) {
				m.Set(rule.Original, canonical)
			}
		}
	}
}
