// Package consent hands a provider authorization URL to the visitor and waits
// for the provider to call back. It stands in for the sign-in popup.
package consent

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUnknownState   = errors.New("consent: no pending request for state")
	ErrAlreadyWaiting = errors.New("consent: a request is already pending")
)

// Request asks the visitor to approve sign-in at URL.
type Request struct {
	Provider string
	URL      string
	State    string
}

// Response is what the provider redirected back with. Error is set when the
// visitor declined or closed the consent window.
type Response struct {
	Code  string
	Error string
}

// Prompt is the gateway side of a Broker.
type Prompt interface {
	Await(ctx context.Context, req Request) (Response, error)
}

// Broker pairs one pending consent request with its callback.
type Broker struct {
	mu       sync.Mutex
	pending  *Request
	reply    chan Response
	prompted chan Request
}

func NewBroker() *Broker {
	return &Broker{prompted: make(chan Request, 1)}
}

// Await publishes req on Prompted and blocks until Deliver is called with
// the same state or ctx is done.
func (b *Broker) Await(ctx context.Context, req Request) (Response, error) {
	reply := make(chan Response, 1)

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return Response{}, ErrAlreadyWaiting
	}
	b.pending = &req
	b.reply = reply
	b.mu.Unlock()

	defer b.clear(reply)

	select {
	case b.prompted <- req:
	default:
		// a previous prompt nobody read; replace it
		select {
		case <-b.prompted:
		default:
		}
		b.prompted <- req
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Deliver completes the pending request matching state.
func (b *Broker) Deliver(state string, resp Response) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil || state == "" || b.pending.State != state {
		return ErrUnknownState
	}
	b.reply <- resp
	b.pending = nil
	b.reply = nil
	return nil
}

// Prompted yields each request as it starts waiting.
func (b *Broker) Prompted() <-chan Request {
	return b.prompted
}

// Pending returns the request currently waiting for a callback.
func (b *Broker) Pending() (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return Request{}, false
	}
	return *b.pending, true
}

func (b *Broker) clear(reply chan Response) {
	b.mu.Lock()
	if b.reply == reply {
		b.pending = nil
		b.reply = nil
	}
	b.mu.Unlock()

	select {
	case <-b.prompted:
	default:
	}
}

var _ Prompt = (*Broker)(nil)
