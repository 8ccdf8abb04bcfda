// Package remote talks to the external compile service. Source text is
// submitted with Submit; Poll asks whether the per-role projections are
// ready and Await loops with backoff until they are. Compile failures
// come back as data, never as process-fatal errors, and transport
// failures are returned unretried.
package remote
