// Package voteable holds the relation table that makes a votee type voteable.
//
// A Builder collects (votee type, related type) registrations at startup; Build freezes
// them into a Registry that is passed by reference to the voting engine. The first
// registration for a key wins. Entries where related == votee carry the votee's own
// weights; every other entry is a parent the vote propagates to.
package voteable
