// Package checkpoint periodically persists the state of named components
// and restores it on startup.
//
// A Store owns the checkpoint root and one subdirectory per component:
//
//	<root>/<component>/checkpoint_<timestamp>
//	<root>/<component>/checkpoint_last
//
// Store.SaveAll snapshots every registered StateSource, writes each snapshot
// through a staging file and promotes it with an atomic rename, then swaps
// checkpoint_last. Store.LoadAll follows checkpoint_last back into each
// source. A Scheduler runs SaveAll at a fixed period on one goroutine.
//
// Typical startup:
//
//	store, err := checkpoint.NewStore(cfg, sources)   // fails fast on a bad root
//	store.LoadAll(ctx)                                 // missing checkpoints only warn
//	sched, err := checkpoint.NewScheduler(store, time.Minute) // first save happens here
//	sched.Start()
//	defer sched.Stop()
//
// Failures of one component never abort the others; they are logged and
// reported through SaveReport and RestoreReport.
package checkpoint
