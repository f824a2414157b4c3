// Package supergraph loads a composed supergraph SDL document — the
// join__type/join__field/join__graph and composite__lookup/composite__is
// directives a schema composer emits — into the schema.Schema the rest of
// the gateway plans and executes against. Entity keys come from
// join__type(key:) and composite__lookup(key:); composite__key is not read.
package supergraph

import (
	"fmt"

	language "github.com/hanpama/federon/internal/language"
)

// Violation is a single problem found while loading a supergraph document,
// positioned at the SDL location that caused it.
type Violation struct {
	Message string
	File    string
	Line    int
	Column  int
}

// ValidationError aggregates every violation found during a single Load
// call; loading stops and reports all of them rather than failing fast on
// the first one, so a composer's CI can fix every error in one pass.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := fmt.Sprintf("supergraph: %d violation(s):\n", len(e))
	for _, v := range e {
		line := "- " + v.Message
		if v.File != "" {
			line += fmt.Sprintf(" %s:%d:%d", v.File, v.Line, v.Column)
		}
		msg += line + "\n"
	}
	return msg
}

func violationAt(pos *language.Position, format string, args ...any) *Violation {
	v := &Violation{Message: fmt.Sprintf(format, args...)}
	if pos != nil {
		v.File = pos.Src.Name
		v.Line = pos.Line
		v.Column = pos.Column
	}
	return v
}

func (b *builder) addViolation(v *Violation) {
	b.violations = append(b.violations, v)
}
