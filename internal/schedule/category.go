package schedule

import "strings"

const (
	// CategoryOther is the fallback for material labels matching no rule.
	CategoryOther = "other"
	// CategoryGeneral groups tasks with no material mention at all.
	CategoryGeneral = "general"
)

// CategorizeMaterial maps a material or task label to a category tag via
// lower-cased substring match against the ordered rule table.
func (r Rules) CategorizeMaterial(label string) string {
	text := strings.ToLower(label)
	for _, rule := range r.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Category
			}
		}
	}
	return CategoryOther
}

// CategorizeTask assigns a task to the sub-timeline category for its
// phase. Tasks mentioning no known material fall into the general
// sub-timeline rather than "other".
func (r Rules) CategorizeTask(title, description string) string {
	if c := r.CategorizeMaterial(title + " " + description); c != CategoryOther {
		return c
	}
	return CategoryGeneral
}
