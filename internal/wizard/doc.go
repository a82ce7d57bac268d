// Package wizard implements the step-by-step flow of the enrichment wizard.
//
// A Wizard moves linearly through the steps
//
//	upload → preview → configure → search-terms → prompt → sites → processing → results
//
// Advance only leaves a step when that step's guard holds; Back is always
// allowed. Every write to wizard state goes through a method on *Wizard, and
// readers receive deep-copied State snapshots.
//
// Processing runs outside the wizard. The task registers itself with
// BeginProcessing and reports with the generation it was given; once the
// wizard is reset or leaves the processing step, reports from that task are
// dropped.
package wizard
