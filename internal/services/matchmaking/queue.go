package matchmaking

import (
	"slices"

	"github.com/mcoot/numberhunt/internal/model"
)

// Pair is two queued identities matched together; Host arrived first
type Pair struct {
	Host  model.IdentityToken
	Guest model.IdentityToken
}

// Eligibility reports whether a queued identity may still be paired,
// i.e. it is live and roomless
type Eligibility func(model.IdentityToken) bool

// Queue is a FIFO of identities waiting for an opponent. It is not safe
// for concurrent use; the relay serialises all calls.
type Queue struct {
	entries []model.IdentityToken
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends token unless it is already queued
func (q *Queue) Enqueue(token model.IdentityToken) {
	if q.Contains(token) {
		return
	}
	q.entries = append(q.entries, token)
}

// Dequeue removes token if present and reports whether it was
func (q *Queue) Dequeue(token model.IdentityToken) bool {
	idx := slices.Index(q.entries, token)
	if idx < 0 {
		return false
	}
	q.entries = slices.Delete(q.entries, idx, idx+1)
	return true
}

// PushFront puts token back at the head, for pairings that fell through
func (q *Queue) PushFront(token model.IdentityToken) {
	if q.Contains(token) {
		return
	}
	q.entries = slices.Insert(q.entries, 0, token)
}

// Contains reports whether token is queued
func (q *Queue) Contains(token model.IdentityToken) bool {
	return slices.Contains(q.entries, token)
}

// Len returns the number of queued identities
func (q *Queue) Len() int {
	return len(q.entries)
}

// Snapshot returns the queue contents in arrival order
func (q *Queue) Snapshot() []model.IdentityToken {
	return slices.Clone(q.entries)
}

// Purge drops every entry that is no longer eligible
func (q *Queue) Purge(eligible Eligibility) {
	q.entries = slices.DeleteFunc(q.entries, func(t model.IdentityToken) bool {
		return !eligible(t)
	})
}

// TryPair removes and returns as many pairs as the queue can form. The
// earliest arrival is always the host, and untouched entries keep their
// order.
func (q *Queue) TryPair(eligible Eligibility) []Pair {
	var pairs []Pair
	for len(q.entries) >= 2 {
		q.Purge(eligible)
		if len(q.entries) < 2 {
			break
		}

		head := q.entries[0]
		q.entries = q.entries[1:]

		idx := slices.IndexFunc(q.entries, func(t model.IdentityToken) bool {
			return t != head && eligible(t)
		})
		if idx < 0 {
			q.entries = slices.Insert(q.entries, 0, head)
			break
		}

		guest := q.entries[idx]
		q.entries = slices.Delete(q.entries, idx, idx+1)
		pairs = append(pairs, Pair{Host: head, Guest: guest})
	}
	return pairs
}
