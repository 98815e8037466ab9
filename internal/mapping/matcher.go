package mapping

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
)

// Matcher decides whether a reference-table client field belongs to a client.
type Matcher interface {
	// Match reports whether ruleClient (from the reference table) selects
	// rules for clientKey (from the file name).
	Match(clientKey, ruleClient string) bool

	// Name identifies the strategy in logs.
	Name() string
}

// NewMatcher builds the matcher named by the configuration.
func NewMatcher(cfg config.MatcherConfig) (Matcher, error) {
	switch cfg.Strategy {
	case "", config.MatcherFirstToken:
		return FirstTokenMatcher{}, nil
	case config.MatcherExact:
		return NewExactMatcher(cfg.Aliases), nil
	default:
		return nil, fmt.Errorf("unknown matcher strategy %q", cfg.Strategy)
	}
}

// =============================================================================
// FIRST TOKEN
// =============================================================================

// FirstTokenMatcher matches when the reference client field contains the
// first whitespace-delimited word of the client key, ignoring case.
//
// "Great White Car Wash" selects rows for "Great White" but also for any
// client named "Great ...". Use ExactMatcher where first words collide.
type FirstTokenMatcher struct{}

// Match implements Matcher.
func (FirstTokenMatcher) Match(clientKey, ruleClient string) bool {
	fields := strings.Fields(clientKey)
	if len(fields) == 0 || ruleClient == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ruleClient), strings.ToLower(fields[0]))
}

// Name implements Matcher.
func (FirstTokenMatcher) Name() string {
	return config.MatcherFirstToken
}

// =============================================================================
// EXACT
// =============================================================================

// ExactMatcher matches the reference client field against the client key,
// then against the client's aliases in order. Comparison ignores case and
// surrounding whitespace.
type ExactMatcher struct {
	aliases map[string][]string
}

// NewExactMatcher creates an exact matcher. aliases maps a client key to the
// other names the reference table uses for it.
func NewExactMatcher(aliases map[string][]string) ExactMatcher {
	normalized := make(map[string][]string, len(aliases))
	for client, names := range aliases {
		key := foldKey(client)
		for _, name := range names {
			normalized[key] = append(normalized[key], foldKey(name))
		}
	}
	return ExactMatcher{aliases: normalized}
}

// Match implements Matcher.
func (m ExactMatcher) Match(clientKey, ruleClient string) bool {
	key := foldKey(clientKey)
	candidate := foldKey(ruleClient)
	if key == "" || candidate == "" {
		return false
	}
	if key == candidate {
		return true
	}
	for _, alias := range m.aliases[key] {
		if alias == candidate {
			return true
		}
	}
	return false
}

// Name implements Matcher.
func (ExactMatcher) Name() string {
	return config.MatcherExact
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
