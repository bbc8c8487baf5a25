// Package inmemorystore provides a thread-safe, in-memory implementation
// of the statestore.Store interface. It backs every local build invocation;
// state is discarded when the process exits.
package inmemorystore
