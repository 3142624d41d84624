// Package stream maps client-facing stream names to upstream channel ids
// and enforces the authorization rules attached to each stream kind.
//
// The set of stream kinds is a closed enum so the scope and filtering rules
// per kind are exhaustive: adding a kind without deciding its rules is a
// compile-time hole in Resolve, not a silent fallthrough.
package stream
