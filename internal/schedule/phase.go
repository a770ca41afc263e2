package schedule

import (
	"strings"

	"siteline/internal/config"
)

// Phase is one of the three fixed stages of project work.
type Phase string

const (
	PhasePreparation  Phase = "preparation"
	PhaseExecution    Phase = "execution"
	PhaseVerification Phase = "verification"
)

// PhaseOrder is the fixed gating order. Locks walk this slice; never
// reorder it.
var PhaseOrder = []Phase{PhasePreparation, PhaseExecution, PhaseVerification}

// Rules holds the keyword tables driving phase classification and
// material categorization. Keyword lists are ordered and evaluated in
// order: preparation is always checked before verification, so a title
// matching both classifies as preparation.
type Rules struct {
	PreparationKeywords  []string
	VerificationKeywords []string
	Categories           []CategoryRule
}

// CategoryRule pairs a category with its match keywords. Rules are an
// ordered list, not a map: the first matching category wins.
type CategoryRule struct {
	Category string
	Keywords []string
}

// RulesFromConfig builds the rule tables from project config.
func RulesFromConfig(cfg *config.Config) Rules {
	r := Rules{
		PreparationKeywords:  cfg.Classifier.Preparation,
		VerificationKeywords: cfg.Classifier.Verification,
	}
	for _, c := range cfg.Categories {
		r.Categories = append(r.Categories, CategoryRule{Category: c.Category, Keywords: c.Keywords})
	}
	return r
}

// ClassifyPhase maps a task's title and description to a phase. The
// function is total: text matching no keyword classifies as execution.
func (r Rules) ClassifyPhase(title, description string) Phase {
	text := strings.ToLower(title + " " + description)
	for _, kw := range r.PreparationKeywords {
		if strings.Contains(text, kw) {
			return PhasePreparation
		}
	}
	for _, kw := range r.VerificationKeywords {
		if strings.Contains(text, kw) {
			return PhaseVerification
		}
	}
	return PhaseExecution
}
