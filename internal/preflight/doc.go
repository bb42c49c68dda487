// Package preflight provides readiness checks for the tools, directories and
// oracle endpoint scriptsync depends on.
//
// "scriptsync doctor" renders RunAll's results. The pipeline commands call
// CheckSystemDeps for the stages they are about to run so a missing binary
// fails before any paid oracle call is made.
package preflight
