package agent

import "github.com/sells-group/leadgen-cli/pkg/anthropic"

// Tool names offered to the model.
const (
	ToolSearchCompanies = "search_companies"
	ToolVisitWebsite    = "visit_website"
	ToolAnalyzeFit      = "analyze_company_fit"
	ToolSaveCompany     = "save_company"
	ToolRefineStrategy  = "refine_search_strategy"
)

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// toolDefs describes the tools in the Messages API format.
func toolDefs() []anthropic.Tool {
	return []anthropic.Tool{
		{
			Name:        ToolSearchCompanies,
			Description: "Search the web for companies. Returns titles, URLs, domains, and snippets.",
			InputSchema: map[string]any{
				"query": str("Search query"),
				"limit": integer("Maximum results, default 10"),
			},
			Required: []string{"query"},
		},
		{
			Name:        ToolVisitWebsite,
			Description: "Load a web page and return the company name, description, emails, phones, technologies, and social links found on it.",
			InputSchema: map[string]any{
				"url": str("Page URL or bare domain"),
			},
			Required: []string{"url"},
		},
		{
			Name:        ToolAnalyzeFit,
			Description: "Score 0-100 how well a company matches the targeting profile.",
			InputSchema: map[string]any{
				"domain":       str("Company domain"),
				"company_name": str("Company name"),
				"description":  str("What the company does"),
				"industry":     str("Industry"),
			},
			Required: []string{"domain"},
		},
		{
			Name: ToolSaveCompany,
			Description: "Save a qualified company and its contacts. At least one contact must have a valid email or phone, " +
				"otherwise nothing is saved.",
			InputSchema: map[string]any{
				"domain":       str("Company domain"),
				"company_name": str("Company name"),
				"description":  str("What the company does"),
				"industry":     str("Industry"),
				"tech_stack": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"contacts": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":     str("Full name, empty if unknown"),
							"title":    str("Job title"),
							"email":    str("Email address"),
							"phone":    str("Phone number"),
							"linkedin": str("LinkedIn profile URL"),
						},
					},
				},
			},
			Required: []string{"domain", "contacts"},
		},
		{
			Name:        ToolRefineStrategy,
			Description: "Record why the search approach is changing and check whether to keep going.",
			InputSchema: map[string]any{
				"reasoning":       str("What to change and why"),
				"current_results": integer("Companies saved so far"),
				"target_results":  integer("Companies wanted"),
			},
			Required: []string{"reasoning", "current_results", "target_results"},
		},
	}
}
