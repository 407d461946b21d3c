package tools

import (
	"maps"
	"slices"
)

// Param describes one string parameter of a tool.
type Param struct {
	Name        string
	Description string
	Enum        []string
}

// Declaration is the provider independent description of a tool. Dialects
// translate it into their own schema format.
type Declaration struct {
	Name        string
	Description string
	Params      []Param
}

// Declarations describes the built-in tools. Known section names become the
// enum of the navigate tool.
func Declarations(sections map[string]string) []Declaration {
	var names []string
	if len(sections) > 0 {
		names = slices.Sorted(maps.Keys(sections))
	}

	return []Declaration{
		{
			Name:        ToolNavigate,
			Description: "Navigate the page to a named section.",
			Params: []Param{
				{Name: "section", Description: "Name of the section to open.", Enum: names},
			},
		},
		{
			Name:        ToolScroll,
			Description: "Scroll the page until the element is visible.",
			Params: []Param{
				{Name: "element_id", Description: "DOM id of the element."},
			},
		},
		{
			Name:        ToolHighlight,
			Description: "Briefly highlight an element on the page.",
			Params: []Param{
				{Name: "element_id", Description: "DOM id of the element."},
			},
		},
	}
}

// JSONSchema renders the parameters as a JSON schema object.
func (d Declaration) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
