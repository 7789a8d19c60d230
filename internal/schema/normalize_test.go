package schema

import (
	"testing"
)

const pingIntrospection = `{
  "data": {
    "__schema": {
      "queryType": {"name": "Query"},
      "mutationType": null,
      "subscriptionType": null,
      "types": [
        {
          "kind": "OBJECT",
          "name": "Query",
          "fields": [
            {
              "name": "ping",
              "args": [],
              "type": {"kind": "SCALAR", "name": "String", "ofType": null},
              "isDeprecated": false
            }
          ]
        },
        {"kind": "SCALAR", "name": "String"},
        {"kind": "OBJECT", "name": "__Schema", "fields": []},
        {"kind": "OBJECT", "name": "__Type", "fields": []}
      ]
    }
  }
}`

func TestNormalizePingSchema(t *testing.T) {
	sch, err := Normalize([]byte(pingIntrospection))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if sch.QueryType == nil {
		t.Fatal("QueryType missing")
	}
	if sch.QueryType.Name != "Query" {
		t.Errorf("QueryType.Name = %q, want Query", sch.QueryType.Name)
	}
	if len(sch.QueryType.Fields) != 1 {
		t.Fatalf("QueryType has %d fields, want 1", len(sch.QueryType.Fields))
	}
	if f := sch.QueryType.Fields[0]; f.Name != "ping" || f.Type != "String" {
		t.Errorf("field = %s: %s, want ping: String", f.Name, f.Type)
	}

	if sch.MutationType != nil {
		t.Error("MutationType should be absent")
	}
	if sch.SubscriptionType != nil {
		t.Error("SubscriptionType should be absent")
	}
}

func TestNormalizeExcludesMetaTypes(t *testing.T) {
	sch, err := Normalize([]byte(pingIntrospection))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for _, typ := range sch.Types {
		if len(typ.Name) >= 2 && typ.Name[:2] == "__" {
			t.Errorf("meta type %q leaked into catalogue", typ.Name)
		}
	}
	// Query and String survive.
	if len(sch.Types) != 2 {
		t.Errorf("got %d types, want 2", len(sch.Types))
	}
}

func TestNormalizeRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "definitely not json"},
		{"no schema", `{"data":{}}`},
		{"null types", `{"data":{"__schema":{"types":null}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize([]byte(tt.raw)); err == nil {
				t.Error("Normalize should fail")
			}
		})
	}
}

func TestRenderTypeRef(t *testing.T) {
	str := func(s string) *typeRef { return &typeRef{Kind: "SCALAR", Name: s} }
	tests := []struct {
		name string
		ref  typeRef
		want string
	}{
		{"plain scalar", *str("String"), "String"},
		{"non-null", typeRef{Kind: "NON_NULL", OfType: str("ID")}, "ID!"},
		{"list", typeRef{Kind: "LIST", OfType: str("User")}, "[User]"},
		{
			"non-null list of non-null",
			typeRef{Kind: "NON_NULL", OfType: &typeRef{Kind: "LIST", OfType: &typeRef{Kind: "NON_NULL", OfType: str("User")}}},
			"[User!]!",
		},
		{"bare list", typeRef{Kind: "LIST"}, "[String]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTypeRef(tt.ref); got != tt.want {
				t.Errorf("RenderTypeRef() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeEnumAndUnion(t *testing.T) {
	raw := `{
	  "data": {"__schema": {
	    "queryType": {"name": "Query"},
	    "types": [
	      {"kind": "OBJECT", "name": "Query", "fields": []},
	      {"kind": "ENUM", "name": "Role", "enumValues": [{"name": "ADMIN"}, {"name": "USER"}]},
	      {"kind": "UNION", "name": "Actor", "possibleTypes": [{"name": "User"}, {"name": "Bot"}]},
	      {"kind": "OBJECT", "name": "User", "interfaces": [{"name": "Node"}], "fields": []}
	    ]
	  }}
	}`
	sch, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	byName := map[string]Type{}
	for _, typ := range sch.Types {
		byName[typ.Name] = typ
	}
	if got := byName["Role"].EnumValues; len(got) != 2 || got[0] != "ADMIN" {
		t.Errorf("Role enum values = %v", got)
	}
	if got := byName["Actor"].PossibleTypes; len(got) != 2 || got[1] != "Bot" {
		t.Errorf("Actor possible types = %v", got)
	}
	if got := byName["User"].Interfaces; len(got) != 1 || got[0] != "Node" {
		t.Errorf("User interfaces = %v", got)
	}
}
