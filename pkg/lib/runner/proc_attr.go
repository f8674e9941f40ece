package runner

import (
	"os"
	"syscall"
)

// procAttr carries the SysProcAttr for a start together with any file the
// parent has to keep open until the child is running.
type procAttr struct {
	File *os.File
	Raw  *syscall.SysProcAttr
}
