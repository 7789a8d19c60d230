// Package schema flattens a GraphQL introspection result into a UI-friendly
// type catalogue.
package schema

// Schema is the immutable output of one introspection call. Absent roots
// (e.g. a service with no mutations) are simply nil.
type Schema struct {
	QueryType        *RootSummary `json:"queryType,omitempty"`
	MutationType     *RootSummary `json:"mutationType,omitempty"`
	SubscriptionType *RootSummary `json:"subscriptionType,omitempty"`
	Types            []Type       `json:"types"`
}

// RootSummary names a root operation type and lists its fields.
type RootSummary struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Type is one flattened schema type. Built-in meta types (double-underscore
// prefix) are never included.
type Type struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"` // OBJECT, INTERFACE, UNION, ENUM, INPUT_OBJECT, SCALAR
	Description   string   `json:"description,omitempty"`
	Fields        []Field  `json:"fields,omitempty"`
	EnumValues    []string `json:"enumValues,omitempty"`
	Interfaces    []string `json:"interfaces,omitempty"`
	PossibleTypes []string `json:"possibleTypes,omitempty"`
}

// Field is a named field with its type rendered in SDL notation, preserving
// list and non-null markers (e.g. "[User!]!").
type Field struct {
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Description       string     `json:"description,omitempty"`
	Args              []Argument `json:"args,omitempty"`
	IsDeprecated      bool       `json:"isDeprecated,omitempty"`
	DeprecationReason string     `json:"deprecationReason,omitempty"`
}

// Argument is one field argument.
type Argument struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	DefaultValue *string `json:"defaultValue,omitempty"`
}

// IntrospectionQuery is the standard introspection document, trimmed to the
// sub-structures the catalogue needs. Deprecated fields are included so the
// catalogue can flag them.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      kind
      name
      description
      fields(includeDeprecated: true) {
        name
        description
        args { name defaultValue type { ...TypeRef } }
        type { ...TypeRef }
        isDeprecated
        deprecationReason
      }
      inputFields { name defaultValue type { ...TypeRef } }
      interfaces { name }
      enumValues(includeDeprecated: true) { name }
      possibleTypes { name }
    }
  }
}
fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType { kind name ofType { kind name ofType { kind name } } }
      }
    }
  }
}`
