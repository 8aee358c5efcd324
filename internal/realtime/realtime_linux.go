//go:build linux

package realtime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func apply(o Options) error {
	if o.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			return fmt.Errorf("realtime: mlockall: %w", err)
		}
	}
	if o.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, o.Nice); err != nil {
			return fmt.Errorf("realtime: setpriority %d: %w", o.Nice, err)
		}
	}
	return nil
}
