package models

// PlanDefinition is static configuration, never persisted per user.
type PlanDefinition struct {
	Tier             PlanTier `json:"planType"`
	DisplayName      string   `json:"planName"`
	AmountMinorUnits int64    `json:"amount"`
	CreditsGranted   int      `json:"credits"`
	ValidityMonths   int      `json:"validityMonths"`
}

type PlanCatalog map[PlanTier]PlanDefinition

// DefaultPlans returns the two paid tiers. Amounts are in paise.
func DefaultPlans() PlanCatalog {
	return PlanCatalog{
		PlanPro: {
			Tier:             PlanPro,
			DisplayName:      "Pro Plan",
			AmountMinorUnits: 49900,
			CreditsGranted:   5,
			ValidityMonths:   3,
		},
		PlanUltimate: {
			Tier:             PlanUltimate,
			DisplayName:      "Ultimate Plan",
			AmountMinorUnits: 99900,
			CreditsGranted:   12,
			ValidityMonths:   6,
		},
	}
}

// Paid returns the catalog entry for a paid tier. Free is never purchasable.
func (c PlanCatalog) Paid(tier PlanTier) (PlanDefinition, bool) {
	if tier == PlanFree {
		return PlanDefinition{}, false
	}
	def, ok := c[tier]
	return def, ok
}

// List returns plans in ascending price order.
func (c PlanCatalog) List() []PlanDefinition {
	out := make([]PlanDefinition, 0, len(c))
	for _, def := range c {
		out = append(out, def)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].AmountMinorUnits < out[j-1].AmountMinorUnits; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
