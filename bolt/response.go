package bolt

import (
	"time"

	"github.com/neo4j-drivers/bolt-go/packstream"
)

// Value is the PackStream value type, re-exported so callers don't
// need to import the packstream package directly for request
// parameters or response metadata.
type Value = packstream.Value

// Record is the ordered list of values carried by one RECORD message.
type Record []Value

// Status is the terminal (or not yet terminal) state of a Response.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
	StatusIgnored
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusIgnored:
		return "ignored"
	}
	return "unknown"
}

// Response is the accumulator for one outstanding request: a queue of
// received records, a terminal status, and the metadata map carried by
// whichever message closed it (SUCCESS or FAILURE).
type Response struct {
	records  []Record
	status   Status
	metadata map[string]Value
	final    bool // true for the Response that completes its owning Result
}

func newResponse(final bool) *Response {
	return &Response{status: StatusPending, final: final}
}

func (r *Response) terminal() bool { return r.status != StatusPending }

// Status reports the Response's current terminal status.
func (r *Response) Status() Status { return r.status }

// Metadata returns the metadata map recorded when the Response
// terminated, or nil if it has not yet terminated.
func (r *Response) Metadata() map[string]Value { return r.metadata }

// Result is an ordered sequence of Responses representing one query:
// today, a RUN Response followed by a PULL Response flagged final.
type Result struct {
	cypher     string
	parameters map[string]Value
	responses  []*Response
	idx        int
	observed   bool
	startedAt  time.Time
}

func newResult(cypher string, parameters map[string]Value) *Result {
	return &Result{cypher: cypher, parameters: parameters, startedAt: time.Now()}
}

// Complete reports whether the Result's final Response has terminated.
func (r *Result) Complete() bool {
	if len(r.responses) == 0 {
		return false
	}
	last := r.responses[len(r.responses)-1]
	return last.final && last.terminal()
}

// Run returns the RUN Response, the first Response in the Result.
func (r *Result) Run() *Response {
	if len(r.responses) == 0 {
		return nil
	}
	return r.responses[0]
}

// popRecord removes and returns the next record in enqueue order,
// draining each Response's own queue before moving to the next. The
// second return value is false if no record is currently buffered,
// which may mean more must be read off the wire, or that the Result
// is complete and drained.
func (r *Result) popRecord() (Record, bool) {
	for r.idx < len(r.responses) {
		resp := r.responses[r.idx]
		if len(resp.records) > 0 {
			rec := resp.records[0]
			resp.records = resp.records[1:]
			return rec, true
		}
		if resp.terminal() {
			r.idx++
			continue
		}
		return nil, false
	}
	return nil, false
}
