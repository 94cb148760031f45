// Package watch attaches push subscriptions to remote import job records.
//
// The pipeline exposes each job as a live record; every mutation of that
// record is pushed over a websocket. There is no polling and no client-side
// backoff: the subscription delivers what the server sends until it is
// detached or the channel dies.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Update is one mutation of a remote job record.
type Update struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Watcher dials live job records on the import service.
type Watcher struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWatcher creates a Watcher for the given base URL. http(s) schemes are
// converted to their websocket equivalents.
func NewWatcher(baseURL string) *Watcher {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.Replace(baseURL, "http://", "ws://", 1)
	baseURL = strings.Replace(baseURL, "https://", "wss://", 1)

	return &Watcher{
		baseURL: baseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
}

// Watch subscribes to the live record for jobID. onUpdate is invoked for
// every pushed mutation; onError is invoked at most once if the channel
// itself fails. Delivery stops when the subscription is detached.
func (w *Watcher) Watch(ctx context.Context, jobID string, onUpdate func(Update), onError func(error)) (*Subscription, error) {
	endpoint := fmt.Sprintf("%s/v1/imports/%s/watch", w.baseURL, jobID)

	conn, _, err := w.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("watch job %s: %w", jobID, err)
	}

	sub := &Subscription{
		jobID:  jobID,
		conn:   conn,
		logger: w.logger,
	}
	go sub.readLoop(onUpdate, onError)

	w.logger.Debug("job subscription attached", "job_id", jobID)
	return sub, nil
}

// Subscription is one attached push listener on a job record.
type Subscription struct {
	jobID  string
	conn   *websocket.Conn
	logger *slog.Logger

	// mu serializes callback delivery against Detach. Detach takes the lock
	// before marking the subscription dead, so it blocks until any in-flight
	// callback returns; after Detach returns no callback can fire.
	mu       sync.Mutex
	detached bool
}

// Detach synchronously stops delivery. Once it returns, neither onUpdate nor
// onError will be invoked again for this subscription. Safe to call more
// than once. Must not be called from within onUpdate or onError: Detach
// waits for the running callback, so a reentrant call deadlocks the read
// loop. Callbacks that want to detach spawn it on another goroutine.
func (s *Subscription) Detach() {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.detached = true
	s.mu.Unlock()

	s.conn.Close()
	s.logger.Debug("job subscription detached", "job_id", s.jobID)
}

func (s *Subscription) readLoop(onUpdate func(Update), onError func(error)) {
	defer s.conn.Close()

	for {
		var u Update
		if err := s.conn.ReadJSON(&u); err != nil {
			// The server closes the channel normally once the record is
			// terminal; that is the end of the stream, not a failure.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.deliverError(onError, err)
			return
		}

		if !s.deliver(onUpdate, u) {
			return
		}
	}
}

// deliver invokes onUpdate unless the subscription has been detached.
// Returns false once delivery has stopped for good.
func (s *Subscription) deliver(onUpdate func(Update), u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return false
	}
	onUpdate(u)
	return true
}

func (s *Subscription) deliverError(onError func(error), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return
	}
	s.detached = true

	s.logger.Warn("job subscription lost", "job_id", s.jobID, "error", err)
	if onError != nil {
		onError(err)
	}
}
