// Package fleetsync propagates ticket keys to running load-balancer
// instances over their command sockets.
//
// # Protocol
//
// Each call opens a fresh connection, writes a single request line and
// reads a response: a status line ("OK ..." or "ERR <code> <detail>"),
// optional payload lines, and a terminating "." line. Commands are
// key-list, key-show and key-set. Transport timeouts always surface as
// ErrChannelTimeout, distinct from an instance answering "ERR rejected".
//
// # Delivery semantics
//
// key-set is not idempotent: the instance ages its runtime window on
// every accepted set. Pusher fans a key out to many instances in
// parallel and reports per-instance results; partial success is normal.
// CompletionSet gives retry drivers at-most-once delivery per instance.
//
// Nothing in this package reads or writes seed files or the persisted
// key cache. Runtime windows live only in instance memory.
package fleetsync
