package generation

import (
	"strings"

	"productsnap/internal/domain"
)

var promptTemplates = map[domain.JobMode]string{
	domain.JobModeStudioWhite: "Precisely isolate the product. Crisp edges. Shadow: subtle studio product shadow. " +
		"Pure white (#FFFFFF) background. No background props. No text. Professional product photography.",
	domain.JobModeModelTryOn: "Present the product on a realistic model. Maintain correct scale and placement. " +
		"Clean studio lighting. Neutral backdrop. Focus on product clarity. Natural pose, professional model.",
	domain.JobModeLifestyleScene: "Place the product in a natural setting that fits the category. " +
		"Balanced lighting, photorealistic materials, consistent shadows. " +
		"Avoid brand logos and text. Create an authentic lifestyle environment.",
}

// BuildPrompt renders the mode template, then sub-options, then the user's
// free-text override.
func BuildPrompt(mode domain.JobMode, override string, opts domain.SubOptions) string {
	var b strings.Builder
	b.WriteString(promptTemplates[mode])

	line := func(label, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString(".")
	}
	line("Shadow style", opts.ShadowOption)
	line("Model gender", opts.ModelGender)
	line("Scene environment", opts.SceneEnvironment)

	if override = strings.TrimSpace(override); override != "" {
		b.WriteString("\n\nAdditional instructions: ")
		b.WriteString(override)
	}
	return b.String()
}
