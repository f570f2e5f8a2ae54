package plugins

import (
	"slices"
	"sync"
)

// AccessList holds the authorized and blocked user ids of one session.
type AccessList struct {
	mu         sync.RWMutex
	authorized map[int]struct{}
	blocked    map[int]struct{}
}

func NewAccessList(authorized, blocked []int) *AccessList {
	a := &AccessList{
		authorized: make(map[int]struct{}, len(authorized)),
		blocked:    make(map[int]struct{}, len(blocked)),
	}
	for _, id := range authorized {
		a.authorized[id] = struct{}{}
	}
	for _, id := range blocked {
		a.blocked[id] = struct{}{}
	}
	return a
}

func (a *AccessList) Authorize(id int) { a.set(a.authorized, id, true) }
func (a *AccessList) Revoke(id int)    { a.set(a.authorized, id, false) }
func (a *AccessList) Block(id int)     { a.set(a.blocked, id, true) }
func (a *AccessList) Unblock(id int)   { a.set(a.blocked, id, false) }

func (a *AccessList) IsAuthorized(id int) bool { return a.has(a.authorized, id) }
func (a *AccessList) IsBlocked(id int) bool    { return a.has(a.blocked, id) }

func (a *AccessList) Authorized() []int { return a.list(a.authorized) }
func (a *AccessList) Blocked() []int    { return a.list(a.blocked) }

func (a *AccessList) set(m map[int]struct{}, id int, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		m[id] = struct{}{}
		return
	}
	delete(m, id)
}

func (a *AccessList) has(m map[int]struct{}, id int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := m[id]
	return ok
}

func (a *AccessList) list(m map[int]struct{}) []int {
	a.mu.RLock()
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	a.mu.RUnlock()
	slices.Sort(out)
	return out
}
