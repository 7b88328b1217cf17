package access

import (
	"fmt"
	"regexp"
	"strings"
)

// ResearcherRefusal is returned instead of a model answer when a researcher
// asks about the assistant itself.
const ResearcherRefusal = "Hi, I am a research assistant designed solely to analyze anonymized patient data " +
	"and provide research insights. Please provide a research-related query."

// The first pattern may appear anywhere in the input. The others must be
// the whole question, so research questions that merely contain them
// ("who are you able to find with diabetes") still reach the records.
var defaultProbePatterns = []string{
	`\btell me about yourself\b`,
	`^who are you\W*$`,
	`^(?:(?:can|could|would) you |please )?(?:describe|introduce) yourself\W*$`,
}

// IdentityProbe matches questions that ask the assistant to describe itself.
type IdentityProbe struct {
	patterns []*regexp.Regexp
}

// NewIdentityProbe compiles the built-in patterns plus any extra ones.
// Extra patterns are matched case-insensitively.
func NewIdentityProbe(extra ...string) (*IdentityProbe, error) {
	p := &IdentityProbe{}
	for _, expr := range append(append([]string{}, defaultProbePatterns...), extra...) {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("compiling probe pattern %q: %w", expr, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// DefaultIdentityProbe uses only the built-in patterns.
func DefaultIdentityProbe() *IdentityProbe {
	p, err := NewIdentityProbe()
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether input is an identity probe.
func (p *IdentityProbe) Match(input string) bool {
	if p == nil {
		return false
	}
	in := strings.TrimSpace(input)
	for _, re := range p.patterns {
		if re.MatchString(in) {
			return true
		}
	}
	return false
}
