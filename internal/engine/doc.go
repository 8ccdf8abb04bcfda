// Package engine interprets DCR relation semantics over the marking of a
// graph. Step is a pure function from one marking state to the next; the
// Simulation type owns the single mutable state of a running session and
// appends every accepted firing to the firing log.
//
// One firing is fully applied, direct effects followed by the two closure
// passes, before the next firing is accepted. There is no terminal state: a
// DCR graph simply answers "executable?" per event at any time.
package engine
