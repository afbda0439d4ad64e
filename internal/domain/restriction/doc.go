// Package restriction decides which names, extensions and content types
// the file manager may expose or accept.
//
// Rules are evaluated deny-first: any matching deny rule rejects the
// candidate, any matching allow rule accepts it, and otherwise the default
// policy applies. Evaluation is a pure function of configuration.
//
// Under a deny default, directories need an explicit allow rule (for
// example pattern "**", target name, scope directory) or nothing below the
// root will be reachable.
package restriction
