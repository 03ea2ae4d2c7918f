package serp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestExpandTemplates_Cartesian(t *testing.T) {
	p := model.TargetingProfile{
		Industries: []string{"Dental", "Legal", "Retail", "Fitness"},
		Geos:       []string{"Austin", "Denver"},
	}
	got := ExpandTemplates([]string{"{industry} in {geo}"}, p, 0)
	assert.Equal(t, []string{
		"Dental in Austin", "Dental in Denver",
		"Legal in Austin", "Legal in Denver",
		"Retail in Austin", "Retail in Denver",
	}, got)
}

func TestExpandTemplates_SkipsUnfillableAndCaps(t *testing.T) {
	p := model.TargetingProfile{Industries: []string{"Dental"}, Geos: []string{"Austin", "austin "}}
	got := ExpandTemplates([]string{"{industry} using {tech}", "{industry}  {geo}", "{industry} {geo}"}, p, 0)
	assert.Equal(t, []string{"Dental Austin"}, got)

	many := model.TargetingProfile{Industries: []string{"a", "b", "c"}, Geos: []string{"x", "y", "z"}}
	assert.Len(t, ExpandTemplates([]string{"{industry} {geo}"}, many, 4), 4)
}

func TestStrategies(t *testing.T) {
	p := model.TargetingProfile{
		Industries: []string{"Restaurant"}, Geos: []string{"ABQ"}, TechStack: []string{"Square"},
		Titles: []string{"Owner"}, ExcludeDomains: []string{"x.com"},
	}
	assert.Equal(t, p, Strict.Apply(p))

	dropped := DropTechStack.Apply(p)
	assert.Empty(t, dropped.TechStack)
	assert.Equal(t, []string{"Owner"}, dropped.Titles)
	assert.Equal(t, []string{"Square"}, p.TechStack)

	generic := GenericFallback.Apply(p)
	assert.Empty(t, generic.Titles)
	assert.Equal(t, []string{"Restaurant"}, generic.Industries)
	assert.Equal(t, []string{"x.com"}, generic.ExcludeDomains)
	assert.True(t, GenericFallback.Generic())
	assert.False(t, DropTechStack.Generic())
	assert.Equal(t, "drop_tech_stack", DropTechStack.String())
}

func TestAIQueryCount(t *testing.T) {
	assert.Equal(t, 1, aiQueryCount(0))
	assert.Equal(t, 1, aiQueryCount(5))
	assert.Equal(t, 2, aiQueryCount(6))
	assert.Equal(t, 10, aiQueryCount(50))
	assert.Equal(t, 15, aiQueryCount(500))
}
