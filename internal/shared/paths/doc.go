// Package paths confines client-supplied paths to a sandbox root.
//
// Client paths are slash-separated and rooted at the sandbox ("/" is the
// root itself). The Resolver canonicalises them component by component so
// that neither ".." segments nor symlinks can reach outside the root.
//
// # Guarantees
//
//   - The root is absolute and symlink-free; it is created when missing.
//   - Resolve never returns a path outside the root.
//   - A symlink whose target escapes the root, or dangles, is rejected.
//   - Components that do not exist yet are appended lexically, so callers
//     can resolve the destination of a create or move.
//
// # Usage
//
//	resolver, err := paths.NewResolver("/srv/files")
//	abs, info, err := resolver.ResolveExisting("/docs/report.pdf")
//	if errors.Is(err, fserr.ErrInvalidPath) {
//	    // traversal attempt
//	}
//	id := resolver.ID(abs, info.IsDir())
package paths
