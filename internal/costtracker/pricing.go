package costtracker

// ModelPricing holds per-million-token pricing for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// defaultPricing is a price-per-million-token table, grounded on the
// teacher's ports.GetModelPricing table (there expressed per-1K tokens;
// rescaled here to per-million, which is how providers publish rate
// cards). Unknown models fall back to fallbackPricing.
var defaultPricing = map[string]ModelPricing{
	"gpt-4":                       {InputPerMillion: 30, OutputPerMillion: 60},
	"gpt-4-turbo":                 {InputPerMillion: 10, OutputPerMillion: 30},
	"gpt-4o":                      {InputPerMillion: 5, OutputPerMillion: 15},
	"gpt-4o-mini":                 {InputPerMillion: 0.15, OutputPerMillion: 0.6},
	"claude-3-5-sonnet":           {InputPerMillion: 3, OutputPerMillion: 15},
	"claude-3-5-sonnet-20241022":  {InputPerMillion: 3, OutputPerMillion: 15},
	"claude-3-5-haiku":            {InputPerMillion: 0.8, OutputPerMillion: 4},
	"claude-3-opus":               {InputPerMillion: 15, OutputPerMillion: 75},
	"claude-3-haiku":              {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	"deepseek-chat":               {InputPerMillion: 0.14, OutputPerMillion: 0.28},
	"deepseek-reasoner":           {InputPerMillion: 0.55, OutputPerMillion: 2.19},
}

// fallbackPricing is used for any model not present in the table.
var fallbackPricing = ModelPricing{InputPerMillion: 1, OutputPerMillion: 2}

// PricingFor returns the configured pricing for model, or fallbackPricing
// if the model is unrecognized.
func PricingFor(model string) ModelPricing {
	if p, ok := defaultPricing[model]; ok {
		return p
	}
	return fallbackPricing
}

// Cost computes the dollar cost of promptTokens/completionTokens against
// model's pricing.
func Cost(model string, promptTokens, completionTokens int) float64 {
	pricing := PricingFor(model)
	return float64(promptTokens)/1_000_000*pricing.InputPerMillion +
		float64(completionTokens)/1_000_000*pricing.OutputPerMillion
}
