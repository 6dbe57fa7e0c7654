package loam

// NodeMetadata is the front matter of a node document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
// The document body becomes the content of a line node.
type NodeMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Type string `json:"type" mapstructure:"type"`

	// To is shorthand for target_id.
	To       string `json:"to" mapstructure:"to"`
	TargetID string `json:"target_id" mapstructure:"target_id"`

	Choices []ChoiceMetadata `json:"choices" mapstructure:"choices"`

	// setVar / condition
	Variable  string         `json:"variable" mapstructure:"variable"`
	Value     any            `json:"value" mapstructure:"value"`
	Condition map[string]any `json:"condition" mapstructure:"condition"`
}

// ChoiceMetadata is one entry of a choice node's "choices" list.
type ChoiceMetadata struct {
	Text      string         `json:"text" mapstructure:"text"`
	To        string         `json:"to" mapstructure:"to"`
	TargetID  string         `json:"target_id" mapstructure:"target_id"`
	Condition map[string]any `json:"condition" mapstructure:"condition"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// raw renders the metadata as a generic node document for the compiler.
func (m NodeMetadata) raw(id, content string) map[string]any {
	data := map[string]any{
		"id":       id,
		"type":     m.Type,
		"targetId": firstNonEmpty(m.TargetID, m.To),
	}
	if data["type"] == "" {
		data["type"] = "line"
	}
	if content != "" {
		data["content"] = content
	}
	if m.Variable != "" {
		data["variable"] = m.Variable
	}
	if m.Value != nil {
		data["value"] = m.Value
	}
	if m.Condition != nil {
		data["condition"] = m.Condition
	}
	if len(m.Choices) > 0 {
		choices := make([]any, 0, len(m.Choices))
		for _, c := range m.Choices {
			choice := map[string]any{
				"text":     c.Text,
				"targetId": firstNonEmpty(c.TargetID, c.To),
			}
			if c.Condition != nil {
				choice["condition"] = c.Condition
			}
			choices = append(choices, choice)
		}
		data["choices"] = choices
	}
	return data
}
