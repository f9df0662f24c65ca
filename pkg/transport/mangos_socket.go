package transport

import (
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register the ipc and tcp transports so mangos can dial/listen "ipc://"
	// and "tcp://" addresses; without this import the socket factory below
	// only understands the in-process transport.
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// mangosSocket wraps a mangos.Socket to implement Socket.
type mangosSocket struct {
	sock mangos.Socket
}

func (s *mangosSocket) Send(data []byte) error { return s.sock.Send(data) }
func (s *mangosSocket) Recv() ([]byte, error)  { return s.sock.Recv() }
func (s *mangosSocket) Close() error           { return s.sock.Close() }

func (s *mangosSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

func (s *mangosSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionSendDeadline, d)
}

func (s *mangosSocket) Listen(addr string) error { return s.sock.Listen(addr) }
func (s *mangosSocket) Dial(addr string) error   { return s.sock.Dial(addr) }

// MangosSocketFactory creates real mangos REP/REQ sockets.
type MangosSocketFactory struct{}

// NewMangosSocketFactory creates a new mangos socket factory.
func NewMangosSocketFactory() *MangosSocketFactory {
	return &MangosSocketFactory{}
}

func (f *MangosSocketFactory) NewReplySocket() (ListenSocket, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, err
	}
	return &mangosSocket{sock: sock}, nil
}

func (f *MangosSocketFactory) NewRequestSocket() (DialSocket, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, err
	}
	return &mangosSocket{sock: sock}, nil
}

var _ SocketFactory = (*MangosSocketFactory)(nil)
