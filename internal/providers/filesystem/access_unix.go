//go:build unix

package filesystem

import "golang.org/x/sys/unix"

func canRead(abs string) bool {
	return unix.Access(abs, unix.R_OK) == nil
}

func canWrite(abs string) bool {
	return unix.Access(abs, unix.W_OK) == nil
}
