// Package thumbnail maintains resized copies of sandbox images.
//
// The cache mirrors the sandbox tree under its own root: the thumbnail of
// /albums/cat.png lives at <root>/albums/cat.png. Entries are produced on
// first request, regenerated when the source is newer, moved alongside
// file moves and renames, and removed with their source. Copies do not
// carry thumbnails; the copy's thumbnail is generated on first use.
//
// Concurrent requests for the same image share one generation. Files are
// written to a temporary name and renamed into place, so readers never see
// a partial thumbnail.
//
// Failures to decode or encode are soft: GetOrCreate returns an empty path
// and the caller serves the original image instead.
package thumbnail
