package serp

import "github.com/sells-group/leadgen-cli/internal/model"

// SearchStrategy is one step of progressive query loosening.
type SearchStrategy int

const (
	// Strict searches with the full profile.
	Strict SearchStrategy = iota
	// DropTechStack removes the technology constraint.
	DropTechStack
	// GenericFallback keeps only industry and geography.
	GenericFallback
)

// Strategies is the order in which a run loosens its queries.
var Strategies = []SearchStrategy{Strict, DropTechStack, GenericFallback}

func (s SearchStrategy) String() string {
	switch s {
	case Strict:
		return "strict"
	case DropTechStack:
		return "drop_tech_stack"
	case GenericFallback:
		return "generic_fallback"
	default:
		return "unknown"
	}
}

// Apply returns the profile this strategy searches with. p is not modified.
func (s SearchStrategy) Apply(p model.TargetingProfile) model.TargetingProfile {
	out := p.Clone()
	switch s {
	case DropTechStack:
		out.TechStack = nil
	case GenericFallback:
		out = model.TargetingProfile{
			Industries:     out.Industries,
			Geos:           out.Geos,
			ExcludeDomains: out.ExcludeDomains,
			Limits:         out.Limits,
		}
	}
	return out
}

// Generic reports whether the strategy ignores configured templates.
func (s SearchStrategy) Generic() bool {
	return s == GenericFallback
}
