// Package orchestrator implements the task orchestration engine: a
// lifecycle state machine, a dependency graph, a priority scheduler,
// and a capability matcher, composed behind a single Orchestrator
// facade. The engine decides which task runs next and on which worker;
// it never executes task work itself.
package orchestrator
