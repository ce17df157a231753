package domain

// Standard weights of the three-way wheel, in percent.
const (
	WeightBonus   = 20
	WeightPremium = 15
	WeightNoop    = 65
)

// StandardCatalog builds the common wheel shape with module-specific
// labels and bonus size.
func StandardCatalog(module string, bonusAmount int, bonusLabel, premiumLabel, noopLabel string) []WeightedPrize {
	return []WeightedPrize{
		{Weight: WeightBonus, Prize: Prize{ID: module + "-bonus", Kind: KindBonus, Amount: bonusAmount, Label: bonusLabel}},
		{Weight: WeightPremium, Prize: Prize{ID: module + "-premium", Kind: KindPremium, Label: premiumLabel}},
		{Weight: WeightNoop, Prize: Prize{ID: module + "-retry", Kind: KindNoop, Label: noopLabel}},
	}
}
