// Package watch is the live terminal dashboard behind `crmon watch`.
//
// The model never polls. It blocks on the cluster notifier's ready signal,
// drains the pending diffs, takes a fresh snapshot and re-renders. Bursts of
// changes between two renders collapse into one update.
//
// Keys: tab / 1-3 switch between hosts, services and replication; up/k and
// down/j move the selection; ? toggles help; q or ctrl+c quits.
package watch
