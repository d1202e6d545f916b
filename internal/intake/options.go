package intake

import "github.com/m3rciful/pestbot/internal/domain"

// Choice sets offered by the intake form.
var (
	ObjectTypes = []domain.Option{
		{Value: "home", Label: "House"},
		{Value: "apartment", Label: "Apartment"},
		{Value: "office", Label: "Office"},
	}
	QuantityBrackets = []domain.Option{
		{Value: "less_50", Label: "Less than 50"},
		{Value: "50_200", Label: "50-200"},
		{Value: "more_200", Label: "More than 200"},
	}
	ExperienceFlags = []domain.Option{
		{Value: "yes", Label: "Yes"},
		{Value: "no", Label: "No"},
	}
)

// OptionsFor returns the choice set accepted at step, or nil for free-text steps.
func OptionsFor(step Step) []domain.Option {
	switch step {
	case AwaitingObjectType:
		return ObjectTypes
	case AwaitingInsectQuantityBracket:
		return QuantityBrackets
	case AwaitingExperienceFlag:
		return ExperienceFlags
	}
	return nil
}
