//go:build !linux

package realtime

import "fmt"

func apply(o Options) error { return fmt.Errorf("realtime: unsupported OS (need linux)") }
