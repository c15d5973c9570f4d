// Package bolt implements a minimal client for the Bolt v4 wire
// protocol: version handshake, HELLO authentication, RUN/PULL query
// execution, and GOODBYE/close, atop the wire, packstream, frame and
// message packages.
package bolt

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/neo4j-drivers/bolt-go/message"
	"github.com/neo4j-drivers/bolt-go/packstream"
	"github.com/neo4j-drivers/bolt-go/wire"
)

// Message tags, per the Bolt v4 structure catalogue.
const (
	tagHello   byte = 0x01
	tagGoodbye byte = 0x02
	tagRun     byte = 0x10
	tagPull    byte = 0x3F
	tagSuccess byte = 0x70
	tagRecord  byte = 0x71
	tagFailure byte = 0x7F
	tagIgnored byte = 0x7E
)

var preamble = [4]byte{0x60, 0x60, 0xB0, 0x17}

// versionProposal is Bolt 4.0 as the sole proposal, followed by three
// zero proposals, in descending preference order.
var versionProposal = [16]byte{
	0, 0, 0, 4,
	0, 0, 0, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
}

const defaultUserAgent = "bolt-go/1.0"

// state is the session's position in the handshake/auth/query lifecycle.
type state int

const (
	stateUnopened state = iota
	stateNegotiating
	stateAuthenticating
	stateReady
	stateStreaming
	stateClosed
	stateBroken
)

// Observer, when set, is invoked by Sync once a Result issued by Run
// completes (its final Response has terminated), at most once per
// Result. A Result drained to completion through Take alone does not
// invoke it. It carries no wire-protocol
// meaning; it is the seam detection and explain tooling attach to.
type Observer func(cypher string, parameters map[string]Value, dur time.Duration)

// Session is a single authenticated connection to a Bolt server. It is
// not safe for concurrent use: at most one goroutine may call its
// methods at a time, matching the protocol's strictly sequential
// request/response correlation.
type Session struct {
	wire      *wire.Wire
	state     state
	pending   []*Response
	lastErr   error

	serverAgent  string
	connectionID string

	userAgent string

	// TraceID identifies this session in logs and alerts; it is a
	// local client-side correlation id, unrelated to the server's own
	// connection_id recorded by hello.
	TraceID string

	Observer Observer
}

// Open dials address over TCP, performs the version handshake, and
// authenticates with user/password via HELLO.
func Open(address, user, password string) (*Session, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, errTransport("open", fmt.Sprintf("dial %s", address), err)
	}
	return open(conn, user, password)
}

// Connect performs the version handshake and HELLO authentication over
// an already-established connection, the way Open does after dialing.
// It is the seam for callers that manage their own transport (a TLS-
// wrapped socket, an in-memory pipe in a test) instead of a bare TCP
// dial.
func Connect(conn wire.Conn, user, password string) (*Session, error) {
	return open(conn, user, password)
}

func open(conn wire.Conn, user, password string) (*Session, error) {
	s := &Session{
		wire:      wire.New(conn),
		state:     stateNegotiating,
		userAgent: defaultUserAgent,
		TraceID:   uuid.NewString(),
	}
	if err := s.handshake(); err != nil {
		_ = s.wire.Close()
		s.state = stateClosed
		return nil, err
	}
	s.state = stateAuthenticating
	if err := s.hello(user, password); err != nil {
		// Any HELLO failure leaves the session Broken; return it so the
		// caller can observe LastError and still Close the transport.
		s.markBroken(err)
		return s, err
	}
	s.state = stateReady
	return s, nil
}

func (s *Session) handshake() error {
	if err := s.wire.Write(preamble[:]); err != nil {
		return errTransport("handshake", "write preamble", err)
	}
	if err := s.wire.Write(versionProposal[:]); err != nil {
		return errTransport("handshake", "write version proposal", err)
	}
	if _, err := s.wire.Send(); err != nil {
		return errTransport("handshake", "flush", err)
	}
	reply, err := s.wire.Read(4)
	if err != nil {
		return errHandshake("handshake", fmt.Sprintf("server closed during handshake: %v", err))
	}
	major, minor := reply[3], reply[2]
	if major != 4 || minor != 0 {
		return errHandshake("handshake", fmt.Sprintf("UnsupportedVersion: server offered (%d, %d)", major, minor))
	}
	return nil
}

func (s *Session) hello(user, password string) error {
	extra := packstream.Map()
	extra.Put("user_agent", packstream.Str(s.userAgent))
	extra.Put("scheme", packstream.Str("basic"))
	extra.Put("principal", packstream.Str(user))
	extra.Put("credentials", packstream.Str(password))

	if err := message.Write(s.wire, tagHello, extra); err != nil {
		return wrapStageErr("hello", "encode HELLO", err)
	}
	if _, err := s.wire.Send(); err != nil {
		return errTransport("hello", "flush", err)
	}

	tag, fields, err := s.readMessage()
	if err != nil {
		return wrapStageErr("hello", "read HELLO response", err)
	}
	switch tag {
	case tagSuccess:
		meta, err := fieldsToMap("hello", fields)
		if err != nil {
			return err
		}
		if v, ok := meta["server"]; ok {
			s.serverAgent = v.Str
		}
		if v, ok := meta["connection_id"]; ok {
			s.connectionID = v.Str
		}
		return nil
	case tagFailure:
		meta, err := fieldsToMap("hello", fields)
		if err != nil {
			return err
		}
		serr := errServerFailure("hello", meta["code"].Str, meta["message"].Str)
		s.markBroken(serr)
		return serr
	default:
		perr := errProtocol("hello", fmt.Sprintf("unexpected response tag 0x%02X", tag))
		s.markBroken(perr)
		return perr
	}
}

// Run sends a RUN request for cypher with the given parameters and
// target database (db may be empty for the server's default database)
// and returns a Result the caller drives with Pull/Sync/Take. No flush
// is performed, so a Run may be pipelined with a prior unsynced Result.
func (s *Session) Run(cypher string, parameters map[string]Value, db string) (*Result, error) {
	if err := s.checkOperable("run"); err != nil {
		return nil, err
	}

	params := packstream.Map()
	for k, v := range parameters {
		params.Put(k, v)
	}
	extra := packstream.Map()
	extra.Put("db", packstream.Str(db))

	if err := message.Write(s.wire, tagRun, packstream.Str(cypher), params, extra); err != nil {
		err := wrapStageErr("run", "encode RUN", err)
		s.markBroken(err)
		return nil, err
	}

	result := newResult(cypher, parameters)
	resp := newResponse(false)
	result.responses = append(result.responses, resp)
	s.pending = append(s.pending, resp)
	s.state = stateStreaming
	return result, nil
}

// Pull requests up to n records for result (n = -1 means "all
// records") and appends the final Response to the Result.
func (s *Session) Pull(result *Result, n int64) (*Response, error) {
	if err := s.checkOperable("pull"); err != nil {
		return nil, err
	}

	extra := packstream.Map()
	extra.Put("n", packstream.Int(n))
	if err := message.Write(s.wire, tagPull, extra); err != nil {
		err := wrapStageErr("pull", "encode PULL", err)
		s.markBroken(err)
		return nil, err
	}

	resp := newResponse(true)
	result.responses = append(result.responses, resp)
	s.pending = append(s.pending, resp)
	return resp, nil
}

// Sync flushes any buffered writes and blocks until result's final
// Response has terminated.
func (s *Session) Sync(result *Result) error {
	if err := s.checkOperable("sync"); err != nil {
		return err
	}
	if _, err := s.wire.Send(); err != nil {
		err = errTransport("sync", "flush", err)
		s.markBroken(err)
		return err
	}
	for !result.Complete() {
		if err := s.fetchOne(); err != nil {
			return err
		}
	}
	if result.Complete() && s.state == stateStreaming {
		s.state = stateReady
	}
	if !result.observed && s.Observer != nil {
		result.observed = true
		s.Observer(result.cypher, result.parameters, time.Since(result.startedAt))
	}
	return nil
}

// Take returns the next record for result, or ok=false if none remain
// and the Result is complete. If the Result is not yet complete and no
// record is currently buffered, Take drains inbound messages until one
// becomes available or the Result completes.
func (s *Session) Take(result *Result) (record Record, ok bool, err error) {
	if err := s.checkOperable("take"); err != nil {
		return nil, false, err
	}
	for {
		if rec, ok := result.popRecord(); ok {
			return rec, true, nil
		}
		if result.Complete() {
			return nil, false, nil
		}
		if err := s.fetchOne(); err != nil {
			return nil, false, err
		}
	}
}

// Close is idempotent: calling it once already closed is a no-op. On a
// live session it sends GOODBYE (fire-and-forget, no response
// expected) and flushes before closing the transport. On an already
// broken session it skips GOODBYE — there is nothing to say it to —
// but still closes the transport, so the socket is never leaked just
// because the session broke before Close was called.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	if s.state != stateBroken {
		if err := message.Write(s.wire, tagGoodbye); err == nil {
			_, _ = s.wire.Send()
		}
	}
	s.state = stateClosed
	if err := s.wire.Close(); err != nil {
		return errTransport("close", "close transport", err)
	}
	return nil
}

// LastError returns the error that broke the session, or nil if the
// session has not broken.
func (s *Session) LastError() error { return s.lastErr }

// ServerAgent returns the server identification string recorded from
// the HELLO response, or "" before a successful HELLO.
func (s *Session) ServerAgent() string { return s.serverAgent }

// ConnectionID returns the connection id recorded from the HELLO
// response, or "" before a successful HELLO.
func (s *Session) ConnectionID() string { return s.connectionID }

func (s *Session) checkOperable(op string) error {
	switch s.state {
	case stateBroken:
		return errBroken(op, s.lastErr)
	case stateClosed:
		return errBroken(op, nil)
	}
	return nil
}

func (s *Session) markBroken(err error) {
	if s.state == stateBroken {
		return
	}
	s.state = stateBroken
	s.lastErr = err
}

// fetchOne reads a single message off the wire and applies it to the
// head of the pending-response queue.
func (s *Session) fetchOne() error {
	tag, fields, err := s.readMessage()
	if err != nil {
		terr := wrapStageErr("fetch", "read message", err)
		s.markBroken(terr)
		return terr
	}
	if len(s.pending) == 0 {
		perr := errProtocol("fetch", "response received with no pending request")
		s.markBroken(perr)
		return perr
	}

	head := s.pending[0]
	switch tag {
	case tagSuccess:
		meta, err := fieldsToMap("fetch", fields)
		if err != nil {
			s.markBroken(err)
			return err
		}
		head.metadata = meta
		head.status = StatusSuccess
		s.pending = s.pending[1:]
		return nil
	case tagRecord:
		if len(fields) != 1 || fields[0].Kind != packstream.KindList {
			perr := errProtocol("fetch", "Malformed: RECORD field is not a list")
			s.markBroken(perr)
			return perr
		}
		head.records = append(head.records, Record(fields[0].List))
		return nil
	case tagFailure:
		meta, err := fieldsToMap("fetch", fields)
		if err != nil {
			s.markBroken(err)
			return err
		}
		head.metadata = meta
		head.status = StatusFailure
		s.pending = s.pending[1:]
		serr := errServerFailure("fetch", meta["code"].Str, meta["message"].Str)
		s.markBroken(serr)
		return serr
	case tagIgnored:
		head.status = StatusIgnored
		s.pending = s.pending[1:]
		return nil
	default:
		perr := errProtocol("fetch", fmt.Sprintf("unexpected tag 0x%02X", tag))
		s.markBroken(perr)
		return perr
	}
}

func (s *Session) readMessage() (byte, []packstream.Value, error) {
	return message.ReadFrom(s.wire.Reader())
}

// wrapStageErr classifies an error coming out of the packstream/message
// layers: a *packstream.Error or *message.Error means the bytes on the
// wire didn't decode or encode cleanly (KindCodec); anything else is
// treated as a transport failure (KindTransport).
func wrapStageErr(op, msg string, err error) *Error {
	var perr *packstream.Error
	var merr *message.Error
	if errors.As(err, &perr) || errors.As(err, &merr) {
		return errCodec(op, msg, err)
	}
	return errTransport(op, msg, err)
}

func fieldsToMap(op string, fields []packstream.Value) (map[string]Value, error) {
	if len(fields) != 1 || fields[0].Kind != packstream.KindMap {
		return nil, errProtocol(op, "Malformed: expected a single map field")
	}
	return fields[0].Map, nil
}
