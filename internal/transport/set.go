package transport

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/numberhunt/internal/wsproto"
)

// Set tracks every connection whose read loop is running
type Set struct {
	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// NewSet creates an empty Set
func NewSet() *Set {
	return &Set{conns: make(map[string]*Conn)}
}

func (s *Set) add(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID()] = c
	s.wg.Add(1)
}

func (s *Set) remove(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c.ID()]; ok {
		delete(s.conns, c.ID())
		s.wg.Done()
	}
}

// Count returns the number of open connections
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ConnInfo describes one open connection
type ConnInfo struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId,omitempty"`
	State      string    `json:"state"`
	RemoteAddr string    `json:"remoteAddr"`
	OpenedAt   time.Time `json:"openedAt"`
}

// Snapshot describes every open connection, oldest first
func (s *Set) Snapshot() []ConnInfo {
	s.mu.Lock()
	out := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, ConnInfo{
			ID:         c.ID(),
			SessionID:  c.SessionID(),
			State:      c.State().String(),
			RemoteAddr: c.RemoteAddr(),
			OpenedAt:   c.createdAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// CloseAll closes every open connection with the given code
func (s *Set) CloseAll(code wsproto.CloseCode, reason string) {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.CloseWithCode(code, reason)
	}
}

// Wait blocks until every tracked connection has finished or timeout
// elapses, and reports whether they all finished
func (s *Set) Wait(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
