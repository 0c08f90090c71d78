// Package pyrt runs a Python interpreter as a child process and exposes it
// as a bridge.Runtime.
//
// The child executes an embedded host script that reads length-prefixed
// msgpack requests on stdin and answers on stdout. Objects that are not plain
// scalars stay inside the child and cross the pipe as opaque references.
package pyrt
