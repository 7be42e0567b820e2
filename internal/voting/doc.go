// Package voting implements the vote state-transition engine.
//
// Resolve classifies a request as a new vote, revote or unvote. The Engine applies the
// transition to the votee's aggregate with a single conditional store mutation, then
// propagates weighted deltas to registered parents on a best-effort basis.
// There is no in-process locking; the store's conditional mutation is the only
// synchronization point.
package voting
