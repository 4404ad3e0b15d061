// Package valueset implements a terminology value set engine: the data
// model for intensional compositions (include/exclude rules over code
// systems), their extensional realization as expansions, and membership
// testing of coded values.
//
// A ValueSet is either rule-based (constructed with a Compose and an
// Expander that materializes it on first read) or enumerated
// (constructed from a known list of codings, expanded up front).
//
// # Quick Start
//
//	vs := valueset.NewEnumerated(
//	    valueset.Coding{System: "http://x", Code: "A"},
//	    valueset.Coding{System: "http://x", Code: "B"},
//	)
//
//	n, _ := vs.Len(ctx)                                            // 2
//	ok, _ := vs.Contains(ctx, valueset.Coding{System: "http://x", Code: "A"}) // true
//
// Rule-based value sets delegate expansion to an Expander, typically
// engine.ComposeExpander backed by a terminology.InMemoryStore:
//
//	store := terminology.NewStore()
//	exp := engine.New(store, store)
//	vs := valueset.New("http://example.org/vs", compose, exp)
//	codes, err := vs.Codings(ctx) // expands once, then reuses the cache
//
// Reads (Len, Each, Codings, Contains) trigger expansion on first access
// and reuse the cached expansion afterwards. Mutations (Append, Extend)
// update both the composition and the expansion incrementally.
//
// A single ValueSet instance is not safe for concurrent use; callers
// sharing one across goroutines must synchronize around Expand and the
// mutation methods. The backends in the terminology package are safe for
// concurrent use.
package valueset
