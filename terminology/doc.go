// Package terminology provides the in-memory terminology backend: code
// system and value set registration, filter evaluation over concept
// hierarchies, definition loading from JSON/YAML files, and a sharded
// TTL cache for validation and expansion results.
//
// InMemoryStore implements service.ConceptSource and
// service.ValueSetResolver, so it plugs directly into the expansion
// engine, and also implements service.TerminologyService for callers
// that work by canonical URL. Wrap a store in CachedStore when the same
// validations and expansions repeat.
package terminology
