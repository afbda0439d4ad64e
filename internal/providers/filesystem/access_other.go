//go:build !unix

package filesystem

import "os"

func canRead(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.Mode().Perm()&0o444 != 0
}

func canWrite(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.Mode().Perm()&0o222 != 0
}
