package connections

import (
	"fmt"
	"sync"
)

type slot struct {
	mu  sync.Mutex
	con *Connection
}

// Table is the process-wide mapping from socket descriptor to Connection.
// A coarse RWMutex guards the slot array against resize; a dedicated mutex
// per slot serializes all access to that descriptor's record. The array only
// ever grows.
type Table struct {
	mu    sync.RWMutex
	slots []*slot
}

const initialTableSize = 32

func NewTable() *Table {
	t := &Table{}
	t.grow(initialTableSize)
	return t
}

// grow must be called with t.mu held for writing, or from a constructor.
func (t *Table) grow(size int) {
	for len(t.slots) < size {
		t.slots = append(t.slots, &slot{})
	}
}

// lookup returns the slot for fd, growing the array when ensure is set.
// Slot pointers are stable across resizes.
func (t *Table) lookup(fd int, ensure bool) *slot {
	if fd < 0 {
		return nil
	}
	t.mu.RLock()
	if fd < len(t.slots) {
		s := t.slots[fd]
		t.mu.RUnlock()
		return s
	}
	t.mu.RUnlock()
	if !ensure {
		return nil
	}
	t.mu.Lock()
	if size := 2 * len(t.slots); size > fd {
		t.grow(size)
	} else {
		t.grow(fd + 1)
	}
	s := t.slots[fd]
	t.mu.Unlock()
	return s
}

// Put inserts the record for fd. It fails when the slot is already occupied.
func (t *Table) Put(fd int, con *Connection) error {
	s := t.lookup(fd, true)
	if s == nil {
		return fmt.Errorf("invalid descriptor %d", fd)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.con != nil {
		return fmt.Errorf("descriptor %d already present", fd)
	}
	s.con = con
	return nil
}

// GetAndLock acquires the slot lock for fd and returns the borrowed record.
// The caller must Unlock(fd) when it got a non-nil record; an absent record
// releases the lock before returning.
func (t *Table) GetAndLock(fd int) *Connection {
	s := t.lookup(fd, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.con == nil {
		s.mu.Unlock()
		return nil
	}
	return s.con
}

// Unlock releases the slot lock acquired by GetAndLock.
func (t *Table) Unlock(fd int) {
	if s := t.lookup(fd, false); s != nil {
		s.mu.Unlock()
	}
}

// IsPresent reports whether a record currently exists for fd. No lock is
// held on return.
func (t *Table) IsPresent(fd int) bool {
	s := t.lookup(fd, false)
	if s == nil {
		return false
	}
	s.mu.Lock()
	present := s.con != nil
	s.mu.Unlock()
	return present
}

// Remove atomically extracts the record for fd, leaving the slot empty.
func (t *Table) Remove(fd int) *Connection {
	s := t.lookup(fd, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	con := s.con
	s.con = nil
	s.mu.Unlock()
	return con
}

// Size is an upper bound on the largest descriptor ever seen.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// Reset clears every slot, releasing the records, for post-fork use.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = nil
	t.grow(initialTableSize)
}
