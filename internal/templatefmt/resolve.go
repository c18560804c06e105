package templatefmt

import (
	"sort"
	"strings"

	"reminders/internal/domain"
)

// Tier names which resolution step picked a template.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
	TierCategory Tier = "category"
)

// Hints carries the matching data of one trigger rule.
// Params: category tag plus primary and fallback keyword lists.
// Returns: resolver input decoupled from the rule table.
type Hints struct {
	Category         string
	PrimaryKeywords  []string
	FallbackKeywords []string
}

// Resolve selects the single best template for one trigger.
// Params: template catalog and matching hints.
// Returns: chosen template, resolution tier, and false when the category is empty in the catalog.
func Resolve(catalog []domain.MessageTemplate, hints Hints) (domain.MessageTemplate, Tier, bool) {
	inCategory := FilterCategory(catalog, hints.Category)
	if len(inCategory) == 0 {
		return domain.MessageTemplate{}, "", false
	}
	if tpl, ok := firstContaining(inCategory, hints.PrimaryKeywords); ok {
		return tpl, TierPrimary, true
	}
	if tpl, ok := firstContaining(inCategory, hints.FallbackKeywords); ok {
		return tpl, TierFallback, true
	}
	return inCategory[0], TierCategory, true
}

// FilterCategory keeps templates of one category in catalog order.
// Params: catalog and category tag compared case-insensitively.
// Returns: new slice stably sorted by ordering key.
func FilterCategory(catalog []domain.MessageTemplate, category string) []domain.MessageTemplate {
	category = strings.TrimSpace(category)
	out := make([]domain.MessageTemplate, 0, len(catalog))
	for _, tpl := range catalog {
		if strings.EqualFold(strings.TrimSpace(tpl.Category), category) {
			out = append(out, tpl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderingKey < out[j].OrderingKey
	})
	return out
}

func firstContaining(templates []domain.MessageTemplate, keywords []string) (domain.MessageTemplate, bool) {
	if len(keywords) == 0 {
		return domain.MessageTemplate{}, false
	}
	lowered := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" {
			lowered = append(lowered, keyword)
		}
	}
	for _, tpl := range templates {
		title := strings.ToLower(tpl.Title)
		content := strings.ToLower(tpl.Content)
		for _, keyword := range lowered {
			if strings.Contains(title, keyword) || strings.Contains(content, keyword) {
				return tpl, true
			}
		}
	}
	return domain.MessageTemplate{}, false
}
