package notion

import (
	"context"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLeadPageProperties(t *testing.T) {
	props := LeadPage{
		Name:      "Taco Place",
		Domain:    "taco-place.com",
		Website:   "https://taco-place.com",
		Industry:  "Restaurants",
		Score:     90,
		Status:    "NEW",
		TechStack: []string{"Square", "WordPress"},
		Email:     "maria@taco-place.com",
		Phone:     "+15055551234",
		Contacts:  []string{"Maria Lopez <maria@taco-place.com>", "Direct +15055551234"},
	}.Properties()

	title := props[PropName].(notionapi.TitleProperty)
	assert.Equal(t, "Taco Place", title.Title[0].Text.Content)
	assert.Equal(t, 90.0, props[PropScore].(notionapi.NumberProperty).Number)
	assert.Equal(t, "Restaurants", props[PropIndustry].(notionapi.SelectProperty).Select.Name)
	assert.Len(t, props[PropTechStack].(notionapi.MultiSelectProperty).MultiSelect, 2)
	assert.Equal(t, "maria@taco-place.com", props[PropEmail].(notionapi.EmailProperty).Email)
	contacts := props[PropContacts].(notionapi.RichTextProperty).RichText[0].Text.Content
	assert.Contains(t, contacts, "Direct +15055551234")
}

func TestLeadPagePropertiesOmitsEmpty(t *testing.T) {
	props := LeadPage{Name: "Bare", Domain: "bare.com"}.Properties()

	assert.Len(t, props, 3)
	assert.NotContains(t, props, PropEmail)
	assert.NotContains(t, props, PropWebsite)
}

func TestLeadPageTruncatesLongText(t *testing.T) {
	props := LeadPage{Name: "Long", Domain: "long.com", Description: strings.Repeat("a", 2500)}.Properties()

	desc := props[PropSummary].(notionapi.RichTextProperty).RichText[0].Text.Content
	assert.Len(t, desc, maxRichText)
}

func TestUpsertLead_Creates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return req.Parent.DatabaseID == notionapi.DatabaseID("db-1") && req.Properties[PropDomain] != nil
	})).Return(&notionapi.Page{ID: "new-page"}, nil).Once()

	id, created, err := UpsertLead(ctx, mc, "db-1", LeadPage{Name: "Taco Place", Domain: "taco-place.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new-page", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_UpdatesExisting(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "page-1"}}}, nil).Once()
	mc.On("UpdatePage", ctx, "page-1", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	id, created, err := UpsertLead(ctx, mc, "db-1", LeadPage{Name: "Taco Place", Domain: "taco-place.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "page-1", id)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}

func TestUpsertLead_CreateError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.Anything).Return(nil, assert.AnError).Once()

	_, _, err := UpsertLead(ctx, mc, "db-1", LeadPage{Name: "X", Domain: "x.com"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: upsert lead")
}
