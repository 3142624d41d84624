// Package id provides process-local, lexicographically sortable identifiers
// for sessions and requests.
//
// An ID is 16 bytes big-endian: 8 bytes of millisecond timestamp followed by
// 8 bytes of per-process sequence, so ids generated by one process sort by
// creation time. The hex form is what shows up in logs and the
// X-Request-Id header.
package id
