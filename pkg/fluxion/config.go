package fluxion

// DebugMode enables debug output throughout the package.
// When true, TxNamed logs transaction boundaries.
// This should be set at startup and not changed during runtime.
var DebugMode bool
