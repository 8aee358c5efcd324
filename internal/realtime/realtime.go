// Package realtime prepares the process for the fixed-rate tick loop.
package realtime

import "fmt"

// Options selects the process settings applied by Apply. The zero value
// changes nothing.
type Options struct {
	// LockMemory keeps current and future pages resident so the tick loop
	// never waits on a page fault.
	LockMemory bool
	// Nice is the scheduling niceness in [-20, 19]; 0 leaves it unchanged.
	Nice int
}

func (o Options) Validate() error {
	if o.Nice < -20 || o.Nice > 19 {
		return fmt.Errorf("realtime: nice %d outside [-20, 19]", o.Nice)
	}
	return nil
}

// Apply applies o to the running process. It is a no-op for the zero value.
func Apply(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if !o.LockMemory && o.Nice == 0 {
		return nil
	}
	return apply(o)
}
