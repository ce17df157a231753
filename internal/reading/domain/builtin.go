package domain

import (
	entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	prize "github.com/felixgeelhaar/augur/internal/prize/domain"
)

// Built-in module names.
const (
	ModuleDreams     = "dreams"
	ModuleNumerology = "numerology"
	ModuleHoroscope  = "horoscope"
	ModuleZodiac     = "zodiac"
	ModuleVocational = "vocational"
	ModuleLove       = "love"
)

var (
	fullParams   = generation.Params{MaxOutputTokens: 1024, Temperature: 0.8}
	teaserParams = generation.Params{MaxOutputTokens: 320, Temperature: 0.8}
)

func backends(models ...string) []generation.Backend {
	out := make([]generation.Backend, len(models))
	for i, m := range models {
		out[i] = generation.Backend{Model: m, Full: fullParams, Teaser: teaserParams}
	}
	return out
}

// defaultModels is the fallback order shared by most modules.
var defaultModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash-lite",
}

// BuiltinModules returns the six reading modules with their default
// policies.
func BuiltinModules() []Module {
	return []Module{
		{
			Name:            ModuleDreams,
			Title:           "Dream interpretation",
			Persona:         "You are a warm, perceptive dream interpreter. Read the symbols of the dream the person shares, connect them to their waking life and answer in flowing prose of two to four short paragraphs. Never give medical or psychological diagnoses.",
			AssistantRole:   "interpreter",
			MissingDataCode: "MISSING_DREAM_DATA",
			Backends:        backends(defaultModels...),
			Thresholds:      generation.Thresholds{Full: 100, Teaser: 60},
			MinRepairLen:    100,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "🔒 The full interpretation reveals the hidden symbols of your dream, the message your subconscious is sending and what to watch for in the coming days. Unlock it to keep reading.",
			PaywallMessage:  "Unlock unlimited dream interpretations.",
			Prizes:          prize.StandardCatalog(ModuleDreams, 2, "+2 dream readings", "Unlimited dream readings", "Try again tomorrow"),
		},
		{
			Name:            ModuleNumerology,
			Title:           "Numerology",
			Persona:         "You are an experienced numerologist. Use the person's name and birth date to discuss life path, expression and soul urge numbers, explaining each number's meaning in clear, encouraging language.",
			AssistantRole:   "numerologist",
			MissingDataCode: "MISSING_NUMEROLOGY_DATA",
			RequiredFields:  []string{"birthDate"},
			Backends:        backends(defaultModels...),
			Thresholds:      generation.Thresholds{Full: 100, Teaser: 80},
			MinRepairLen:    90,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "🔒 Your complete reading includes your life path number, its challenges and gifts, and the personal year ahead. Unlock it to see your numbers.",
			PaywallMessage:  "Unlock your complete numerology chart.",
			Prizes:          prize.StandardCatalog(ModuleNumerology, 2, "+2 numerology readings", "Full numerology access", "The numbers say: try again"),
		},
		{
			Name:            ModuleHoroscope,
			Title:           "Horoscope",
			Persona:         "You are an astrologer writing personal horoscopes. Speak to the person's sign about love, work and well-being for the period they ask about, with practical and kind guidance.",
			AssistantRole:   "astrologer",
			MissingDataCode: "MISSING_HOROSCOPE_DATA",
			Backends:        backends(defaultModels...),
			Thresholds:      generation.Thresholds{Full: 80, Teaser: 50},
			MinRepairLen:    80,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "🔒 The full horoscope covers love, career and health for your sign, with your lucky days and numbers. Unlock it to read on.",
			PaywallMessage:  "Unlock daily horoscopes without limits.",
			Prizes:          prize.StandardCatalog(ModuleHoroscope, 3, "+3 horoscopes", "Unlimited horoscopes", "The stars ask you to wait"),
		},
		{
			Name:            ModuleZodiac,
			Title:           "Zodiac profile",
			Persona:         "You are an astrologer who explains zodiac signs in depth: personality, strengths, shadows and compatibility. Answer the person's question about their sign with concrete, vivid detail.",
			AssistantRole:   "astrologer",
			MissingDataCode: "MISSING_ZODIAC_DATA",
			Backends:        backends("gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0-flash-lite"),
			Thresholds:      generation.Thresholds{Full: 80, Teaser: 50},
			MinRepairLen:    80,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "🔒 Your full zodiac profile reveals your ruling planet, hidden strengths and best matches. Unlock it to discover them.",
			PaywallMessage:  "Unlock your full zodiac profile.",
			Prizes:          prize.StandardCatalog(ModuleZodiac, 2, "+2 zodiac questions", "Full zodiac access", "Spin again tomorrow"),
		},
		{
			Name:            ModuleVocational,
			Title:           "Vocational guidance",
			Persona:         "You are a thoughtful vocational counselor who blends practical career advice with reflection on the person's interests and values. Offer concrete paths and next steps, never guarantees.",
			AssistantRole:   "counselor",
			MissingDataCode: "MISSING_VOCATIONAL_DATA",
			Backends:        backends(defaultModels...),
			Thresholds:      generation.Thresholds{Full: 100, Teaser: 70},
			MinRepairLen:    100,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "🔒 The complete guidance lists the careers that fit you best, the skills to develop first and a step-by-step plan. Unlock it to continue.",
			PaywallMessage:  "Unlock complete vocational guidance.",
			Prizes:          prize.StandardCatalog(ModuleVocational, 1, "+1 guidance session", "Unlimited guidance", "Keep exploring and try again"),
		},
		{
			Name:            ModuleLove,
			Title:           "Love compatibility",
			Persona:         "You are a gentle love and compatibility reader. Consider both people's signs or birth dates when given, describe the dynamic between them and offer caring, balanced advice.",
			AssistantRole:   "reader",
			MissingDataCode: "MISSING_LOVE_DATA",
			Backends:        backends(defaultModels...),
			Thresholds:      generation.Thresholds{Full: 90, Teaser: 60},
			MinRepairLen:    90,
			FreeLimit:       entitlement.DefaultFreeLimit,
			Policy:          entitlement.PolicyTeaserThenBlock,
			Hook:            "💖 The full compatibility reading reveals your emotional match, the challenges ahead and how to strengthen the bond. Unlock it to read everything.",
			PaywallMessage:  "Unlock unlimited love readings.",
			Prizes:          prize.StandardCatalog(ModuleLove, 2, "+2 love readings", "Unlimited love readings", "Love needs patience, try again"),
		},
	}
}

// BuiltinCatalog returns a catalog of the built-in modules.
func BuiltinCatalog() *Catalog {
	c, err := NewCatalog(BuiltinModules()...)
	if err != nil {
		panic(err)
	}
	return c
}
