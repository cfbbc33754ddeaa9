package face

import (
	"sync"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

// FakeTransport is an in-memory Transport for tests: each expressed
// Interest is recorded and resolved synchronously according to a per-name
// (or default) scripted Outcome.
type FakeTransport struct {
	mu        sync.Mutex
	Sent      []*reqqueue.DataRequest
	Responses map[string]Outcome
	Default   Outcome
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Responses: make(map[string]Outcome), Default: Outcome{Kind: OutcomeTimeout}}
}

func (f *FakeTransport) ExpressInterest(req *reqqueue.DataRequest, lifetimeMs int64, onResult func(Outcome)) error {
	f.mu.Lock()
	f.Sent = append(f.Sent, req)
	resp, ok := f.Responses[req.Name.String()]
	f.mu.Unlock()
	if !ok {
		resp = f.Default
	}
	onResult(resp)
	return nil
}

func (f *FakeTransport) SetResponse(n string, o Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[n] = o
}
