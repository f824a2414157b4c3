package supergraph

import (
	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

// parseFieldSet reads a `@key(fields: "...")`/`@requires(fields: "...")`/
// `@provides(fields: "...")` argument the same way a query document's
// selection set is read: wrapped in braces and handed to the same GraphQL
// parser, so "id sku" and "id shippingInfo { weight }" both parse with the
// grammar the rest of the gateway already speaks, rather than a hand-rolled
// field-set tokenizer.
func parseFieldSet(raw string, pos *language.Position) (schema.FieldSet, *Violation) {
	doc, err := language.ParseQuery("{ " + raw + " }")
	if err != nil {
		return nil, violationAt(pos, "invalid field set %q: %v", raw, err)
	}
	if len(doc.Operations) != 1 {
		return nil, violationAt(pos, "invalid field set %q", raw)
	}
	fs, verr := selectionSetToFieldSet(doc.Operations[0].SelectionSet, raw, pos)
	if verr != nil {
		return nil, verr
	}
	return fs, nil
}

func selectionSetToFieldSet(sel language.SelectionSet, raw string, pos *language.Position) (schema.FieldSet, *Violation) {
	var out schema.FieldSet
	for _, s := range sel {
		f, ok := s.(*language.Field)
		if !ok {
			return nil, violationAt(pos, "invalid field set %q: fragments are not allowed", raw)
		}
		sel := schema.FieldSetSelection{Name: f.Name}
		if len(f.SelectionSet) > 0 {
			sub, verr := selectionSetToFieldSet(f.SelectionSet, raw, pos)
			if verr != nil {
				return nil, verr
			}
			sel.Sub = sub
		}
		out = append(out, sel)
	}
	return out, nil
}

func mustParseFieldSet(b *builder, raw string, pos *language.Position) schema.FieldSet {
	fs, verr := parseFieldSet(raw, pos)
	if verr != nil {
		b.addViolation(verr)
		return nil
	}
	return fs
}
