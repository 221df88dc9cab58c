// Package pipeline runs the collective event stages over a session.
//
// The Orchestrator keeps a dirty set of stages. Parameter changes mark the
// stages they affect, and Run executes binarization, tracking and filtering
// in that fixed order, skipping clean stages. A stage whose input is missing
// reports a diagnostic through a monitoring.Sink, clears its own and every
// downstream result, and ends the run. Stage output is published to the
// session only once the stage has completed.
package pipeline
