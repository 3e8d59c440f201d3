package matchmaking

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// bookOp is one mirrored binding change. An empty code unbinds.
type bookOp struct {
	identity string
	code     string
}

// bookWriter applies binding changes to a MatchBook in order on its own
// goroutine, so storage latency never holds the coordinator lock.
type bookWriter struct {
	book MatchBook
	log  zerolog.Logger

	mu      sync.Mutex
	ops     []bookOp
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newBookWriter(book MatchBook, log zerolog.Logger) *bookWriter {
	w := &bookWriter{
		book: book,
		log:  log,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *bookWriter) bind(identity, code string) { w.push(bookOp{identity: identity, code: code}) }
func (w *bookWriter) unbind(identity string)     { w.push(bookOp{identity: identity}) }

func (w *bookWriter) push(op bookOp) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.ops = append(w.ops, op)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *bookWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *bookWriter) drain() {
	for {
		w.mu.Lock()
		ops := w.ops
		w.ops = nil
		w.mu.Unlock()
		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			w.write(op)
		}
	}
}

func (w *bookWriter) write(op bookOp) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("recovered panic in binding mirror")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), bookTimeout)
	defer cancel()
	var err error
	if op.code == "" {
		err = w.book.Unbind(ctx, op.identity)
	} else {
		err = w.book.Bind(ctx, op.identity, op.code)
	}
	if err != nil {
		w.log.Warn().Err(err).Str("identity", op.identity).Str("match", op.code).Msg("mirror binding")
	}
}

// stop flushes queued changes and waits for the writer to exit. Later
// changes are dropped; stale rows are cleared at the next boot.
func (w *bookWriter) stop() {
	w.mu.Lock()
	first := !w.stopped
	w.stopped = true
	w.mu.Unlock()
	if first {
		close(w.quit)
	}
	<-w.done
}
