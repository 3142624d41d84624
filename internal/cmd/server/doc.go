// Package serverrun assembles and runs the streaming server process.
package serverrun
