// Package project reads and writes the JSON project file format. The full
// variant carries the whole graph plus allocator pools and the raw source
// text, losslessly; the reduced variant drops allocator state and source
// text and reconstructs the allocators from the ids in use. Files are
// validated against an embedded CUE schema before decoding.
package project
