package proc

import (
	"golang.org/x/exp/slices"
)

// StoppointMode selects what kind of access triggers a hardware
// stop-point.
type StoppointMode uint8

const (
	WriteMode StoppointMode = iota
	ReadWriteMode
	ExecuteMode
)

func (m StoppointMode) String() string {
	switch m {
	case WriteMode:
		return "write"
	case ReadWriteMode:
		return "read_write"
	case ExecuteMode:
		return "execute"
	}
	return "invalid"
}

// Stoppoint is the capability set shared by breakpoint sites and
// watchpoints: identity, placement and the ability to be disabled so
// that removal never leaves hardware state set.
type Stoppoint interface {
	ID() int32
	Address() VirtAddr
	AtAddress(addr VirtAddr) bool
	InRange(low, high VirtAddr) bool
	IsEnabled() bool
	Disable() error
}

// StoppointCollection keeps stop-points in insertion order, unique by
// id and by address.
type StoppointCollection[T Stoppoint] struct {
	points []T
}

// Push takes ownership of point. The reference stays valid until
// removal.
func (c *StoppointCollection[T]) Push(point T) T {
	c.points = append(c.points, point)
	return point
}

func (c *StoppointCollection[T]) findByID(id int32) int {
	return slices.IndexFunc(c.points, func(p T) bool { return p.ID() == id })
}

func (c *StoppointCollection[T]) findByAddress(addr VirtAddr) int {
	return slices.IndexFunc(c.points, func(p T) bool { return p.AtAddress(addr) })
}

func (c *StoppointCollection[T]) ContainsID(id int32) bool {
	return c.findByID(id) >= 0
}

func (c *StoppointCollection[T]) ContainsAddress(addr VirtAddr) bool {
	return c.findByAddress(addr) >= 0
}

// EnabledStoppointAtAddress reports whether an enabled stop-point
// covers addr.
func (c *StoppointCollection[T]) EnabledStoppointAtAddress(addr VirtAddr) bool {
	i := c.findByAddress(addr)
	return i >= 0 && c.points[i].IsEnabled()
}

func (c *StoppointCollection[T]) GetByID(id int32) (T, error) {
	var zero T
	i := c.findByID(id)
	if i < 0 {
		return zero, Usagef("invalid stop-point id %d", id)
	}
	return c.points[i], nil
}

func (c *StoppointCollection[T]) GetByAddress(addr VirtAddr) (T, error) {
	var zero T
	i := c.findByAddress(addr)
	if i < 0 {
		return zero, Usagef("no stop-point at address %s", addr)
	}
	return c.points[i], nil
}

// GetInRange returns the stop-points with low <= addr < high in
// insertion order.
func (c *StoppointCollection[T]) GetInRange(low, high VirtAddr) []T {
	var out []T
	for _, p := range c.points {
		if p.InRange(low, high) {
			out = append(out, p)
		}
	}
	return out
}

// RemoveByID disables the stop-point and drops it.
func (c *StoppointCollection[T]) RemoveByID(id int32) error {
	i := c.findByID(id)
	if i < 0 {
		return Usagef("invalid stop-point id %d", id)
	}
	return c.removeAt(i)
}

// RemoveByAddress disables the stop-point at addr and drops it.
func (c *StoppointCollection[T]) RemoveByAddress(addr VirtAddr) error {
	i := c.findByAddress(addr)
	if i < 0 {
		return Usagef("no stop-point at address %s", addr)
	}
	return c.removeAt(i)
}

func (c *StoppointCollection[T]) removeAt(i int) error {
	if err := c.points[i].Disable(); err != nil {
		return err
	}
	c.points = slices.Delete(c.points, i, i+1)
	return nil
}

// ForEach visits the stop-points in insertion order.
func (c *StoppointCollection[T]) ForEach(f func(T)) {
	for _, p := range c.points {
		f(p)
	}
}

func (c *StoppointCollection[T]) Size() int { return len(c.points) }

func (c *StoppointCollection[T]) Empty() bool { return len(c.points) == 0 }
