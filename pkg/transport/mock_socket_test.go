package transport

import (
	"errors"
	"time"
)

// chanSocket is an in-memory Socket backed by a pair of channels, used to
// exercise Server/Client wiring without a real mangos transport.
type chanSocket struct {
	send    chan []byte
	recv    chan []byte
	closed  chan struct{}
	recvDDL time.Duration
}

var errSocketClosed = errors.New("transport: mock socket closed")

func (s *chanSocket) Send(data []byte) error {
	select {
	case s.send <- data:
		return nil
	case <-s.closed:
		return errSocketClosed
	}
}

func (s *chanSocket) Recv() ([]byte, error) {
	var timeout <-chan time.Time
	if s.recvDDL > 0 {
		timeout = time.After(s.recvDDL)
	}
	select {
	case data := <-s.recv:
		return data, nil
	case <-timeout:
		return nil, errors.New("transport: mock recv timeout")
	case <-s.closed:
		return nil, errSocketClosed
	}
}

func (s *chanSocket) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

func (s *chanSocket) SetRecvDeadline(d time.Duration) error {
	s.recvDDL = d
	return nil
}

func (s *chanSocket) SetSendDeadline(time.Duration) error { return nil }
func (s *chanSocket) Listen(string) error                 { return nil }
func (s *chanSocket) Dial(string) error                   { return nil }

// pairedFactory hands out the two ends of one channel pair: the first
// call to NewReplySocket/NewRequestSocket gets one end, matching the
// other end handed out by its counterpart call.
type pairedFactory struct {
	clientToServer chan []byte
	serverToClient chan []byte
}

func newPairedFactory() *pairedFactory {
	return &pairedFactory{
		clientToServer: make(chan []byte, 1),
		serverToClient: make(chan []byte, 1),
	}
}

func (f *pairedFactory) NewReplySocket() (ListenSocket, error) {
	return &chanSocket{send: f.serverToClient, recv: f.clientToServer, closed: make(chan struct{})}, nil
}

func (f *pairedFactory) NewRequestSocket() (DialSocket, error) {
	return &chanSocket{send: f.clientToServer, recv: f.serverToClient, closed: make(chan struct{})}, nil
}

var _ SocketFactory = (*pairedFactory)(nil)
