package supergraph

import (
	language "github.com/hanpama/federon/internal/language"
)

// directivesNamed returns every directive named name on dirs, since
// join__type/join__field/composite__lookup are all repeatable (one
// application per subgraph a type, field, or lookup belongs to).
func directivesNamed(dirs language.DirectiveList, name string) []*language.Directive {
	var out []*language.Directive
	for _, d := range dirs {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

func directiveNamed(dirs language.DirectiveList, name string) *language.Directive {
	for _, d := range dirs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (b *builder) stringArg(dir *language.Directive, name string) (string, bool) {
	for _, a := range dir.Arguments {
		if a.Name == name {
			if a.Value.Kind != language.StringValue && a.Value.Kind != language.EnumValue && a.Value.Kind != language.BlockValue {
				b.addViolation(violationAt(a.Position, "argument %q of @%s must be a string", name, dir.Name))
				return "", false
			}
			return a.Value.Raw, true
		}
	}
	return "", false
}

func (b *builder) stringListArg(dir *language.Directive, name string) []string {
	for _, a := range dir.Arguments {
		if a.Name == name {
			if a.Value.Kind != language.ListValue {
				b.addViolation(violationAt(a.Position, "argument %q of @%s must be a list", name, dir.Name))
				return nil
			}
			out := make([]string, 0, len(a.Value.Children))
			for _, c := range a.Value.Children {
				out = append(out, c.Value.Raw)
			}
			return out
		}
	}
	return nil
}
