// Package utils holds small helpers shared by the file manager: client
// name normalisation and human-readable byte counts.
package utils
