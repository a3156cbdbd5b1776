package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"

	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// CategorySuggestion is a suggested charge category for an expense label.
type CategorySuggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SuggestCategory asks Gemini which of categories fits an expense label.
// The returned category is always one of them, in its exact spelling.
func (c *Client) SuggestCategory(ctx context.Context, label string, categories []models.Category) (*CategorySuggestion, error) {
	if c.generator == nil {
		return nil, errors.New("gemini client not initialized")
	}
	if strings.TrimSpace(label) == "" {
		return nil, errors.New("description is required")
	}
	if len(categories) == 0 {
		return nil, errors.New("no categories available")
	}

	log := logger.Log.With().Str("label_hash", hashDescription(label)).Logger()

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = SanitizeCategoryName(string(cat))
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildCategorySuggestionPrompt(sanitizeDescription(label), names)}},
	}}
	resp, err := c.generator.GenerateContent(ctx, ModelName, contents, suggestionConfig(names))
	if err != nil {
		log.Error().Err(err).Msg("Gemini category suggestion failed")
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("no response from Gemini")
	}

	suggestion, err := parseSuggestion(resp.Text(), names)
	if err != nil {
		log.Warn().Err(err).Msg("Unusable Gemini category suggestion")
		return nil, err
	}

	log.Debug().
		Str("category", suggestion.Category).
		Float64("confidence", suggestion.Confidence).
		Msg("Gemini suggested category")
	return suggestion, nil
}

// suggestionConfig constrains the answer to a JSON object whose category is
// one of names.
func suggestionConfig(names []string) *genai.GenerateContentConfig {
	temperature := float32(0.2)
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 500,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{
			Text: "You classify property operating expenses. Respond with a single JSON object and nothing else.",
		}}},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {
					Type:        genai.TypeString,
					Enum:        names,
					Description: "The charge category that best fits the expense",
				},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "Confidence between 0 and 1",
				},
				"reasoning": {
					Type:        genai.TypeString,
					Description: "One short sentence",
				},
			},
			Required: []string{"category", "confidence", "reasoning"},
		},
	}
}

// parseSuggestion validates a model answer against the offered names.
func parseSuggestion(text string, names []string) (*CategorySuggestion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text content in response")
	}
	raw := extractJSON(text)
	if raw == "" {
		return nil, errors.New("no JSON found in response")
	}

	var s CategorySuggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	i := slices.IndexFunc(names, func(n string) bool { return strings.EqualFold(n, s.Category) })
	if i < 0 {
		return nil, fmt.Errorf("suggested category %q not in available categories", s.Category)
	}
	s.Category = names[i]

	if s.Confidence < 0 || s.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range: %f", s.Confidence)
	}
	s.Reasoning = sanitizeReasoning(s.Reasoning)
	return &s, nil
}

func buildCategorySuggestionPrompt(description string, categories []string) string {
	return fmt.Sprintf(`Categorize this operating expense of a rented property: "%s"

Available categories:
- %s

Rules:
- Choose the MOST appropriate category from the list
- COLD_WATER and HOT_WATER for water supply bills, HEATING_COMMON for shared boilers and heating fuel
- ELECTRICITY_COMMON for lighting of stairs, halls and car parks
- TAX_PROPERTY for property tax, WASTE_TAX for refuse collection tax
- CONDO_FEES for co-ownership calls for funds, REPAIRS for works on the dwelling
- OTHER when nothing else fits
- Higher confidence (0.8-1.0) for obvious categories, lower (0.5-0.7) for ambiguous ones

Return JSON only:
{"category": "exact category name", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`,
		description, strings.Join(categories, "\n- "))
}
