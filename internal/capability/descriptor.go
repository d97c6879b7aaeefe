// ABOUTME: Capability descriptors: the name, description, and ordered parameter list an LLM sees.
// ABOUTME: Renders descriptors as JSON Schema objects and reflects parameters from argument structs.

package capability

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// Parameter describes one named argument of a capability.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Enum        []any  `json:"enum,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the declarative metadata of a single capability.
// Parameter order is significant and preserved in the rendered schema.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Required    []string    `json:"required"`
}

// Parameter returns the parameter with the given name, if declared.
func (d Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// check verifies the descriptor is self-consistent.
func (d Descriptor) check() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has empty name")
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("descriptor %q has a parameter with empty name", d.Name)
		}
		if p.Type == "" {
			return fmt.Errorf("parameter %q of %q has no type", p.Name, d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("descriptor %q declares parameter %q twice", d.Name, p.Name)
		}
		seen[p.Name] = true
	}
	for _, r := range d.Required {
		if !seen[r] {
			return fmt.Errorf("descriptor %q requires undeclared parameter %q", d.Name, r)
		}
	}
	return nil
}

// InputSchema renders the descriptor's parameters as a JSON Schema object.
// Property order follows the declared parameter order.
func (d Descriptor) InputSchema() json.RawMessage {
	props := make(orderedProps, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		prop := propertySchema{
			Type:        p.Type,
			Enum:        p.Enum,
			Default:     p.Default,
			Description: p.Description,
		}
		props = append(props, namedProp{name: p.Name, prop: prop})
	}
	required := d.Required
	if required == nil {
		required = []string{}
	}
	out, err := json.Marshal(objectSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	})
	if err != nil {
		// Every field is a plain JSON value; a failure here means a caller put
		// an unmarshalable value into Enum or Default.
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return out
}

type objectSchema struct {
	Type       string       `json:"type"`
	Properties orderedProps `json:"properties"`
	Required   []string     `json:"required"`
}

type propertySchema struct {
	Type        string `json:"type"`
	Enum        []any  `json:"enum,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

type namedProp struct {
	name string
	prop propertySchema
}

// orderedProps marshals as a JSON object with keys in slice order.
type orderedProps []namedProp

func (o orderedProps) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, np := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(np.name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(np.prop)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// ParametersFor reflects an argument struct into an ordered parameter list
// and the names of its required fields. Fields are read in declaration order.
//
// Supported struct tags:
//
//	json:"name"                         parameter name
//	jsonschema:"required"               parameter is required
//	jsonschema:"enum=a,enum=b"          allowed values
//	jsonschema:"default=x"              default value
//	jsonschema_description:"..."        free-text description
func ParametersFor(v any) ([]Parameter, []string) {
	r := jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	s := r.Reflect(v)
	if s == nil || s.Properties == nil {
		return nil, nil
	}

	var params []Parameter
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		params = append(params, Parameter{
			Name:        pair.Key,
			Type:        prop.Type,
			Enum:        prop.Enum,
			Default:     prop.Default,
			Description: prop.Description,
		})
	}
	return params, slices.Clone(s.Required)
}
