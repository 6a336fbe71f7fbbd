//go:build linux

package proc

import (
	"bytes"
	"fmt"
	"os"
)

// isZombie reads the state field of /proc/<pid>/stat, which follows the
// parenthesized comm.
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return false
	}
	return data[i+2] == 'Z'
}
