// Package registry implements the reference-counted subscription registry:
// the single component that maps upstream channel names to local listeners
// and the only one that issues upstream subscribe/unsubscribe calls.
//
// Exactly one upstream subscription exists per distinct channel per process,
// regardless of how many listeners share it.
package registry
