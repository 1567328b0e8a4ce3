package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Product Analysis Prompts
// ============================================================================

// AnalysisSystemPrompt defines the role and output contract for product
// analysis. Both variants share it so the JSON shape stays identical.
const AnalysisSystemPrompt = `You are a shopping assistant that identifies products and returns structured data.

Respond with a single JSON object and nothing else:
{
  "name": "product name",
  "price": "numeric price or empty string",
  "currency": "ISO currency code or empty string",
  "tags": ["up to 5 short tags"],
  "shoppingLink": "URL where the product can be bought, or empty string",
  "description": "one or two sentences",
  "imageUrl": "direct product image URL if you know one, or empty string"
}

Rules:
- Never invent a product name. If the evidence does not identify a specific
  product, set name to "Unknown product" followed by a short literal quote of
  the input.
- Leave fields you cannot support with evidence as empty strings.
- price is digits only, no currency symbols.`

// ImageUserPrompt asks for analysis of a photographed product.
const ImageUserPrompt = `Identify the product in this photo. Read any visible text, brand marks, or packaging before answering. Reply in %s.`

// textUserTemplate is the skeleton for the text/URL variant. Context and the
// suggested query are optional blocks.
const textUserTemplate = `Identify the product described by this input:

%s
%s%s
Reply in %s.`

const contextBlockTemplate = `
Verified context about this input (treat as ground truth, do not search further):
%s
`

const searchInstruction = `
No verified context is available. Search the web for this input before answering, and only state what the results support.
`

const queryHintTemplate = `Suggested search query: %s
`

// BuildImagePrompt returns the user prompt for the image variant.
func BuildImagePrompt(language string) string {
	return fmt.Sprintf(ImageUserPrompt, normalizeLanguage(language))
}

// BuildTextPrompt assembles the user prompt for the text/URL variant.
// context lines come from search results or page metadata; when present the
// model is told to trust them instead of searching on its own.
func BuildTextPrompt(input string, contextLines []string, queryHint, language string) string {
	var contextBlock string
	if len(contextLines) > 0 {
		contextBlock = fmt.Sprintf(contextBlockTemplate, strings.Join(contextLines, "\n"))
	} else {
		contextBlock = searchInstruction
	}

	var hintBlock string
	if queryHint != "" {
		hintBlock = fmt.Sprintf(queryHintTemplate, queryHint)
	}

	return fmt.Sprintf(textUserTemplate, input, contextBlock, hintBlock, normalizeLanguage(language))
}

func normalizeLanguage(language string) string {
	switch strings.ToLower(language) {
	case "", "en", "english":
		return "English"
	case "zh", "zh-tw", "zh-hant", "traditional chinese":
		return "Traditional Chinese"
	case "zh-cn", "zh-hans", "simplified chinese":
		return "Simplified Chinese"
	case "ja", "japanese":
		return "Japanese"
	default:
		return language
	}
}
