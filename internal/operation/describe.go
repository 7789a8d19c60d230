package operation

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Describe derives a best-effort name and kind from an operation document.
// Parse failures never propagate: an unparseable document is reported as an
// unnamed query, since the host client already accepted it.
func Describe(document string) (string, Kind) {
	doc, err := parser.ParseQuery(&ast.Source{Input: document})
	if err != nil || len(doc.Operations) == 0 {
		return fallbackName(document), KindQuery
	}
	op := doc.Operations[0]

	name := op.Name
	if name == "" {
		name = UnnamedLabel
	}

	switch op.Operation {
	case ast.Mutation:
		return name, KindMutation
	case ast.Subscription:
		return name, KindSubscription
	default:
		return name, KindQuery
	}
}

// fallbackName scrapes a plausible operation name out of a document the
// parser rejected, so that partially captured documents still label usefully.
func fallbackName(document string) string {
	fields := strings.Fields(document)
	for i, f := range fields {
		switch f {
		case "query", "mutation", "subscription":
			if i+1 < len(fields) {
				next := fields[i+1]
				if cut := strings.IndexAny(next, "({"); cut > 0 {
					next = next[:cut]
				}
				if next != "" && next != "{" {
					return next
				}
			}
			return UnnamedLabel
		}
	}
	return UnnamedLabel
}

// ClassifyResult maps a result payload to the status it implies: any error
// wins, data alone is success, neither means the operation is still loading.
func ClassifyResult(data any, errs []ErrorDetail) Status {
	if len(errs) > 0 {
		return StatusError
	}
	if data != nil {
		return StatusSuccess
	}
	return StatusLoading
}
