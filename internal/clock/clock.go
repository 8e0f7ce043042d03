// Package clock provides the facility-local time source injected into
// the engine. All comparisons inside the core happen in one fixed
// facility zone; handlers never re-derive offsets themselves.
package clock

import (
	"fmt"
	"time"
)

type Clock interface {
	Now() time.Time
}

type FacilityClock struct {
	loc *time.Location
}

func NewFacilityClock(timezone string) (*FacilityClock, error) {
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load facility timezone %q: %w", timezone, err)
	}
	return &FacilityClock{loc: loc}, nil
}

func (c *FacilityClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// In normalizes an externally supplied timestamp into the facility
// zone before it enters the core.
func (c *FacilityClock) In(t time.Time) time.Time {
	return t.In(c.loc)
}
