// Package grounding implements the context-selection pipeline behind brain
// chat: resolving which captures are in scope for a question, retrieving the
// most relevant fragments from that scope, and assembling the bounded prompt
// handed to the generation layer.
//
// The pipeline is three stages, each independently testable:
//
//	Resolver   policy -> set of capture identifiers
//	Aggregator scope  -> sources + ranked fragments (Context)
//	BuildPrompt        -> deterministic prompt string
//
// Scope resolution failures are aggregation failures and propagate;
// retrieval failures degrade to a sources-only Context and never fail the
// request.
package grounding
