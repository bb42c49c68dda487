// Package runstore persists the pipeline run ledger in SQLite.
//
// The ledger records one row per pipeline run (inputs, status, the stage that
// last ran, review reasons), content-addressed stage completion markers that let
// a rerun skip work whose inputs have not changed, and one row per oracle
// invocation with its token usage.
//
// Open the store with Open, then use the run, marker, and oracle call helpers.
// The schema is versioned; a mismatched database must be cleared rather than
// migrated.
package runstore
