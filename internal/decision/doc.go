// Package decision ranks a user's saved items and records the outcome.
//
// A decide call loads the active items and the preference document up
// front, scores every item with ScoringEngine, sorts and truncates to the
// requested limit, assigns softmax confidence over the kept scores, and
// persists a Decision stamped with content hashes of its inputs. Feedback
// on a decision is stored on the record, fed back into the learned
// preference weights, and echoed as an immutable Event.
//
// History reads page through decisions and events in (createdAt, id)
// descending order using opaque cursors from the cursor package.
package decision
