package questionnaire

// responseSchema is the JSON schema for page extraction output, in the
// wrapped format providers accept for structured responses.
var responseSchema = map[string]any{
	"name":   "questionnaire_page_extraction",
	"strict": true,
	"schema": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":        "array",
				"description": "Every question visible on this page, in reading order",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question_id": map[string]any{
							"type":        "string",
							"description": "Question number or label as printed (e.g., '7', 'Q3')",
						},
						"question_text": map[string]any{
							"type":        "string",
							"description": "Complete question text, word for word",
						},
						"question_type": map[string]any{
							"type": "string",
							"enum": []string{"radio", "checkbox", "text", "dropdown"},
						},
						"all_available_options": map[string]any{
							"type":        "array",
							"description": "Every option shown, whether selected or not",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"option": map[string]any{
										"type": "string",
									},
									"selected": map[string]any{
										"type":        "boolean",
										"description": "True only if the option has a visible mark",
									},
									"confidence": map[string]any{
										"type":        "number",
										"description": "Confidence in this selected/unselected reading, 0.0-1.0",
									},
								},
								"required":             []string{"option", "selected", "confidence"},
								"additionalProperties": false,
							},
						},
						"actual_selections": map[string]any{
							"type":        "array",
							"description": "Only options with a visible check mark or fill; may be empty",
							"items":       map[string]any{"type": "string"},
						},
						"text_response": map[string]any{
							"type":        "string",
							"description": "Text written into the field, exactly as written; empty if none",
						},
						"confidence": map[string]any{
							"type":        "number",
							"description": "Overall confidence in this question's reading, 0.0-1.0",
						},
					},
					"required": []string{
						"question_id",
						"question_text",
						"question_type",
						"all_available_options",
						"actual_selections",
						"text_response",
						"confidence",
					},
					"additionalProperties": false,
				},
			},
			"equipment": map[string]any{
				"type":        "array",
				"description": "Equipment brands and types with written experience, when the page has equipment grids",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"brand": map[string]any{
							"type":        "string",
							"description": "Equipment brand (e.g., CAT, Komatsu, John Deere)",
						},
						"type": map[string]any{
							"type":        "string",
							"description": "Equipment type (e.g., excavator, loader, dozer)",
						},
						"years": map[string]any{
							"type":        "string",
							"description": "Written years of experience, as written; empty if none",
						},
						"confidence": map[string]any{
							"type":        "number",
							"minimum":     0,
							"maximum":     1,
							"description": "Confidence this grid row was read correctly",
						},
					},
					"required":             []string{"brand", "type", "years", "confidence"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions", "equipment"},
		"additionalProperties": false,
	},
}
