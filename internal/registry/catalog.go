package registry

import (
	"strings"

	"worldbuilder-agent/internal/domain"
)

// Built-in capability names.
const (
	Geography = "GeographyAgent"
	Culture   = "CultureAgent"
	Lore      = "LoreAgent"
	Economics = "EconomicsAgent"
	Politics  = "PoliticsAgent"
)

// Builtin returns the five-capability world-building registry. LoreAgent is
// the designated default for ties.
func Builtin() *Registry {
	r, err := New(Catalog(), WithDefault(Lore))
	if err != nil {
		// The catalog is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// Catalog returns the built-in capabilities in registration order.
func Catalog() []domain.Capability {
	return []domain.Capability{
		GeographyCapability(),
		CultureCapability(),
		LoreCapability(),
		EconomicsCapability(),
		PoliticsCapability(),
	}
}

func GeographyCapability() domain.Capability {
	return domain.Capability{
		Name:        Geography,
		Description: "Specializes in geography; crafts concise location descriptions.",
		Keywords:    []string{"geography", "terrain", "world", "rocky", "mountain", "desert", "forest"},
		PromptTemplate: lines(
			"Write one vivid paragraph of about 100 words describing the GEOGRAPHY of this place: {input}",
			"",
			"Required:",
			"- Terrain, biome and climate.",
			"- Names for the key landforms or regions.",
			"",
			"Style:",
			"- Sensory, evocative language that entertains.",
			"- No methodology or commentary.",
			"",
			"Return ONLY the geography paragraph. No headings, lists, analysis or extra text.",
		),
	}
}

func CultureCapability() domain.Capability {
	return domain.Capability{
		Name:        Culture,
		Description: "Specializes in cultural studies; creates fictional cultures for a given geography.",
		Keywords:    []string{"culture", "people", "society", "community", "tradition"},
		PromptTemplate: lines(
			"Write one vivid paragraph of about 100 words describing the CULTURE that thrives in this geography: {input}",
			"",
			"Required:",
			"- Daily customs, values or rituals.",
			"- At least two named clans, tribes or settlements.",
			"",
			"Style:",
			"- Sensory, evocative language that entertains.",
			"- No methodology or commentary.",
			"",
			"Return ONLY the culture paragraph. No headings, lists, analysis or extra text.",
		),
	}
}

func LoreCapability() domain.Capability {
	return domain.Capability{
		Name:        Lore,
		Description: "Specializes in crafting myths, legends, and historical lore.",
		Keywords:    []string{"story", "lore", "myth", "legend", "plot", "tale", "history"},
		UsesStory:   true,
		PromptTemplate: lines(
			"Write a vivid lore excerpt of about 70 words based on this prompt: {input}",
			"",
			"Include:",
			"- A legendary event or turning point.",
			"- One or two named historical figures or factions.",
			"- A sense of mystery that hints at deeper history.",
			"",
			"If the request builds on earlier turns of this conversation, stay consistent with them.",
			"",
			"Return ONLY the lore excerpt. No analysis or meta-commentary.",
		),
	}
}

func EconomicsCapability() domain.Capability {
	return domain.Capability{
		Name:        Economics,
		Description: "Specializes in economic systems, trade networks, and resource management for fictional worlds.",
		Keywords:    []string{"economics", "trade", "market", "resources", "wealth"},
		UsesStory:   true,
		PromptTemplate: lines(
			"Write a vivid economic excerpt of about 70 words based on this prompt: {input}",
			"",
			"Stay consistent with the story so far: {story}",
			"",
			"Include:",
			"- The economic system or trade network.",
			"- Key resources, commodities or currencies.",
			"- Economic challenges or opportunities.",
			"- How the economy shapes daily life.",
			"",
			"Return ONLY the economic excerpt. No analysis or meta-commentary.",
		),
	}
}

func PoliticsCapability() domain.Capability {
	return domain.Capability{
		Name:        Politics,
		Description: "Specializes in political systems, governance structures, and power dynamics for fictional worlds.",
		Keywords:    []string{"politics", "government", "power", "leadership", "authority"},
		UsesStory:   true,
		PromptTemplate: lines(
			"Write a vivid political excerpt of about 70 words based on this prompt: {input}",
			"",
			"Stay consistent with the story so far: {story}",
			"",
			"Include:",
			"- The governing system or political structure.",
			"- Key figures, factions or institutions.",
			"- Power dynamics and conflicts of interest.",
			"- How politics shapes daily life.",
			"",
			"Return ONLY the political excerpt. No analysis or meta-commentary.",
		),
	}
}

func lines(ss ...string) string {
	return strings.Join(ss, "\n")
}
