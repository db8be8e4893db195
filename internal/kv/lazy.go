package kv

import (
	"context"
	"fmt"
)

// Lazy opens a backend in the background. Operations issued before the open
// completes wait for it; if the open fails, every operation returns the
// failure wrapped in ErrInit.
type Lazy struct {
	ready chan struct{}
	store Store
	err   error
}

// OpenAsync starts open in a goroutine and returns immediately.
func OpenAsync(open func() (Store, error)) *Lazy {
	l := &Lazy{ready: make(chan struct{})}
	go func() {
		defer close(l.ready)
		s, err := open()
		if err != nil {
			l.err = fmt.Errorf("%w: %v", ErrInit, err)
			return
		}
		l.store = s
	}()
	return l
}

// Ready blocks until the open finished and reports its outcome.
func (l *Lazy) Ready(ctx context.Context) (Store, error) {
	select {
	case <-l.ready:
		return l.store, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lazy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s, err := l.Ready(ctx)
	if err != nil {
		return nil, false, err
	}
	return s.Get(ctx, key)
}

func (l *Lazy) Set(ctx context.Context, key string, value []byte) error {
	s, err := l.Ready(ctx)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, value)
}

func (l *Lazy) Delete(ctx context.Context, key string) error {
	s, err := l.Ready(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, key)
}

// Close waits for a pending open and closes the backend if it opened.
func (l *Lazy) Close() error {
	<-l.ready
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
