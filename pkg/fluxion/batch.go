package fluxion

import "fmt"

// Batch groups multiple signal writes into a single propagation pass.
// All writes within fn are collected; affected reactions are deduplicated
// and each runs once when the outermost batch completes, after every write
// is visible.
//
// Batches can be nested. Propagation only fires when the outermost batch
// completes.
//
// Example:
//
//	rt.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	    age.Set(30)
//	})
//	// Each affected reaction runs once with all three changes
func (rt *Runtime) Batch(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	rt.startBatch()
	defer rt.endBatch()
	fn()
}

// Tx runs fn as a transaction, grouping all signal writes.
// This is an alias for Batch that aligns with transaction terminology.
func (rt *Runtime) Tx(fn func()) {
	rt.Batch(fn)
}

// TxNamed runs fn as a named transaction. The name is attributed to hook
// events fired for the resulting propagation pass and, in debug mode, logged
// around the transaction.
//
// Example:
//
//	rt.TxNamed("user-profile-update", func() {
//	    user.Set(newUser)
//	    profile.Set(newProfile)
//	})
//	// Debug output: [TX] user-profile-update start/end
func (rt *Runtime) TxNamed(name string, fn func()) {
	if DebugMode {
		fmt.Printf("[TX] %s start\n", name)
		defer fmt.Printf("[TX] %s end\n", name)
	}

	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.batchDepth == 0 {
		rt.txName = name
		defer func() { rt.txName = "" }()
	}

	rt.startBatch()
	defer rt.endBatch()
	fn()
}
