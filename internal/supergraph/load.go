package supergraph

import (
	"os"

	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

type builder struct {
	doc        *language.SchemaDocument
	sch        *schema.Schema
	violations []*Violation
}

// Load reads and parses the composed supergraph SDL at path into a
// schema.Schema, the immutable index the rest of the gateway plans and
// executes against.
func Load(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadSDL(path, string(data))
}

// LoadSDL parses sdl (named for diagnostics) the same way Load does,
// without requiring it to live on disk — used by tests and by anything that
// already holds the supergraph document in memory (e.g. a composition
// service response).
func LoadSDL(name, sdl string) (*schema.Schema, error) {
	doc, err := language.ParseSchema(name, sdl)
	if err != nil {
		return nil, err
	}

	b := &builder{
		doc: doc,
		sch: &schema.Schema{
			Types:      make(map[string]*schema.Type),
			Directives: make(map[string]*schema.Directive),
			Subgraphs:  make(map[schema.SubgraphID]*schema.Subgraph),
			Resolvers:  make(map[schema.ResolverID]*schema.Resolver),
		},
	}

	b.populateBuiltins()
	b.populateDefinitions()
	b.populateFields()
	b.populateGraphs()
	b.populateJoinType()
	b.populateJoinField()
	b.populateLookups()
	b.populateEntityHops()
	b.assignRootTypes()

	if len(b.violations) > 0 {
		return nil, ValidationError(b.violations)
	}

	b.sch.Finalize()
	return b.sch, nil
}

// assignRootTypes binds the conventional Query/Mutation/Subscription type
// names as the schema's operation roots when they are present; a supergraph
// composer that renamed its root types is out of scope for this loader.
func (b *builder) assignRootTypes() {
	if _, ok := b.sch.Types["Query"]; ok {
		b.sch.QueryType = "Query"
	} else {
		b.addViolation(violationAt(nil, "supergraph document has no Query type"))
	}
	if t, ok := b.sch.Types["Mutation"]; ok && len(t.Fields) > 0 {
		b.sch.MutationType = "Mutation"
	}
	if t, ok := b.sch.Types["Subscription"]; ok && len(t.Fields) > 0 {
		b.sch.SubscriptionType = "Subscription"
	}
}
