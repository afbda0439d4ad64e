//go:build !linux

package filesystem

import (
	"os"
	"time"
)

func createdTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
