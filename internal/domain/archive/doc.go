// Package archive zips directories into memory and unpacks zip files with
// per-entry screening.
//
// ZipDirectory is all-or-nothing: a walk or read failure yields
// ARCHIVE_ERROR and no bytes. Extract is best effort per entry: the
// caller's Guard rejects traversal ("zip-slip") and restricted names, and
// rejected entries are reported in the result rather than failing the
// whole extraction.
package archive
