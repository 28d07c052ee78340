package db

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
)

// firestoreUserSubscription adapts a Firestore snapshot listener to the
// UserSubscription interface. The listener goroutine owns the updates channel
// and closes it when the stream ends or Stop is called.
type firestoreUserSubscription struct {
	updates chan UserSnapshot
	cancel  context.CancelFunc

	mu   sync.Mutex
	err  error
	done bool
}

func newFirestoreUserSubscription(ctx context.Context, ref *firestore.DocumentRef) *firestoreUserSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &firestoreUserSubscription{
		updates: make(chan UserSnapshot, 1),
		cancel:  cancel,
	}

	go func() {
		defer close(sub.updates)
		iter := ref.Snapshots(ctx)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				sub.setErr(err)
				return
			}
			out := UserSnapshot{Exists: false}
			if snap.Exists() {
				user, err := decodeUser(snap)
				if err != nil {
					sub.setErr(err)
					return
				}
				out = UserSnapshot{User: user, Exists: true}
			}
			select {
			case sub.updates <- out:
			case <-ctx.Done():
				sub.setErr(ctx.Err())
				return
			}
		}
	}()

	return sub
}

func (s *firestoreUserSubscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.err = err
		s.done = true
	}
}

// Updates returns the snapshot stream. The channel is closed when the
// subscription terminates.
func (s *firestoreUserSubscription) Updates() <-chan UserSnapshot {
	return s.updates
}

// Err reports why the stream ended. Valid after Updates is closed; a
// Stop-initiated shutdown surfaces as context.Canceled.
func (s *firestoreUserSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop cancels the listener. Safe to call more than once.
func (s *firestoreUserSubscription) Stop() {
	s.cancel()
}
