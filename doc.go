// Package accounts provides user account primitives (registration,
// opaque bearer tokens, stateful repositories, HTTP controllers) plus
// lifecycle extension points for downstream admin workflows.
//
// User lifecycle:
//   - Users carry a UserStatus field that is persisted via Bun. Statuses
//     cover pending, active, suspended, and deleted flows so every
//     surface shares the same invariants.
//   - UserStateMachine centralizes the transition graph, deleted_at
//     handling, hooks, and persistence. Invoke Transition with ActorRef
//     metadata whenever an account changes status; admin callers can
//     force transitions outside the graph.
//
// Tokens:
//   - Bearer tokens are opaque random strings stored hashed in
//     auth_tokens. TokenAuthority mints, verifies, and revokes them;
//     revocation is immediate since every request resolves the token
//     against the store.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the sign in
//     commands and the state machine to describe lifecycle and login
//     events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package accounts
