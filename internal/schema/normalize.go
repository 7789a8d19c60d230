package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type introspectionResponse struct {
	Data   introspectionData `json:"data"`
	Errors []any             `json:"errors"`
}

type introspectionData struct {
	Schema introspectionSchema `json:"__schema"`
}

type introspectionSchema struct {
	QueryType        *typeRef            `json:"queryType"`
	MutationType     *typeRef            `json:"mutationType"`
	SubscriptionType *typeRef            `json:"subscriptionType"`
	Types            []introspectionType `json:"types"`
}

type typeRef struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OfType *typeRef `json:"ofType"`
}

type introspectionType struct {
	Kind          string               `json:"kind"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Fields        []introspectionField `json:"fields"`
	InputFields   []introspectionInput `json:"inputFields"`
	Interfaces    []typeRef            `json:"interfaces"`
	EnumValues    []introspectionEnum  `json:"enumValues"`
	PossibleTypes []typeRef            `json:"possibleTypes"`
}

type introspectionField struct {
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Args              []introspectionInput `json:"args"`
	Type              typeRef              `json:"type"`
	IsDeprecated      bool                 `json:"isDeprecated"`
	DeprecationReason string               `json:"deprecationReason"`
}

type introspectionInput struct {
	Name         string  `json:"name"`
	DefaultValue *string `json:"defaultValue"`
	Type         typeRef `json:"type"`
}

type introspectionEnum struct {
	Name string `json:"name"`
}

// metaTypePrefix marks introspection machinery types that are excluded from
// the catalogue.
const metaTypePrefix = "__"

// Normalize converts a raw introspection response into the flattened
// catalogue. Missing optional roots are omitted rather than failing.
func Normalize(raw []byte) (*Schema, error) {
	var payload introspectionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("schema: parse introspection: %w", err)
	}
	if payload.Data.Schema.Types == nil {
		return nil, fmt.Errorf("schema: introspection response has no __schema.types")
	}

	sch := payload.Data.Schema
	out := &Schema{Types: make([]Type, 0, len(sch.Types))}

	byName := make(map[string]introspectionType, len(sch.Types))
	for _, t := range sch.Types {
		if t.Name == "" || strings.HasPrefix(t.Name, metaTypePrefix) {
			continue
		}
		byName[t.Name] = t
		out.Types = append(out.Types, flattenType(t))
	}
	sort.Slice(out.Types, func(i, j int) bool { return out.Types[i].Name < out.Types[j].Name })

	out.QueryType = rootSummary(byName, sch.QueryType)
	out.MutationType = rootSummary(byName, sch.MutationType)
	out.SubscriptionType = rootSummary(byName, sch.SubscriptionType)
	return out, nil
}

// Empty returns the catalogue used when introspection fails: no roots, no
// types, but a non-nil value consumers can render.
func Empty() *Schema {
	return &Schema{Types: []Type{}}
}

func rootSummary(byName map[string]introspectionType, ref *typeRef) *RootSummary {
	if ref == nil || ref.Name == "" {
		return nil
	}
	root, ok := byName[ref.Name]
	if !ok {
		return &RootSummary{Name: ref.Name, Fields: []Field{}}
	}
	return &RootSummary{Name: ref.Name, Fields: flattenFields(root.Fields)}
}

func flattenType(t introspectionType) Type {
	out := Type{
		Name:        t.Name,
		Kind:        t.Kind,
		Description: t.Description,
		Fields:      flattenFields(t.Fields),
	}
	if t.Kind == "INPUT_OBJECT" {
		for _, in := range t.InputFields {
			out.Fields = append(out.Fields, Field{Name: in.Name, Type: RenderTypeRef(in.Type)})
		}
	}
	for _, ev := range t.EnumValues {
		if ev.Name != "" {
			out.EnumValues = append(out.EnumValues, ev.Name)
		}
	}
	for _, iface := range t.Interfaces {
		if iface.Name != "" {
			out.Interfaces = append(out.Interfaces, iface.Name)
		}
	}
	for _, pt := range t.PossibleTypes {
		if pt.Name != "" {
			out.PossibleTypes = append(out.PossibleTypes, pt.Name)
		}
	}
	return out
}

func flattenFields(fields []introspectionField) []Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		field := Field{
			Name:              f.Name,
			Type:              RenderTypeRef(f.Type),
			Description:       f.Description,
			IsDeprecated:      f.IsDeprecated,
			DeprecationReason: f.DeprecationReason,
		}
		for _, a := range f.Args {
			if a.Name == "" {
				continue
			}
			field.Args = append(field.Args, Argument{
				Name:         a.Name,
				Type:         RenderTypeRef(a.Type),
				DefaultValue: a.DefaultValue,
			})
		}
		out = append(out, field)
	}
	return out
}

// RenderTypeRef renders a type reference in SDL notation, preserving list
// and non-null wrappers.
func RenderTypeRef(ref typeRef) string {
	switch ref.Kind {
	case "NON_NULL":
		if ref.OfType != nil {
			return RenderTypeRef(*ref.OfType) + "!"
		}
		return "String!"
	case "LIST":
		if ref.OfType != nil {
			return "[" + RenderTypeRef(*ref.OfType) + "]"
		}
		return "[String]"
	default:
		if ref.Name != "" {
			return ref.Name
		}
		return "String"
	}
}
