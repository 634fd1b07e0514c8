package sinks

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/usnistgov/adcsim"
)

// dialTimeout bounds the connection attempt of the TCP client sink.
const dialTimeout = 5 * time.Second

// TCPClient streams encoded samples over one outgoing TCP connection.
type TCPClient struct {
	encoder
	conn net.Conn
}

// DialTCP connects to a receiver listening at addr.
func DialTCP(addr string, enc adcsim.Encoding) (*TCPClient, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &TCPClient{encoder: encoder{enc: enc}, conn: conn}, nil
}

// Write sends one sample. An error means the receiver is gone.
func (c *TCPClient) Write(s adcsim.Sample) error {
	b, err := c.encode(s)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(b)
	return err
}

// Interrupt unblocks a Write stalled on a receiver that stopped reading.
func (c *TCPClient) Interrupt() {
	c.conn.SetWriteDeadline(time.Now())
}

// Close closes the connection.
func (c *TCPClient) Close() error {
	return c.conn.Close()
}

// TCPServer serves the sample stream to one TCP receiver at a time. Write
// blocks until a receiver connects; when the receiver disconnects, the sample
// being written is dropped and the next Write waits for a new receiver.
type TCPServer struct {
	encoder
	ln net.Listener

	mu          sync.Mutex
	conn        net.Conn
	interrupted bool
}

// ErrInterrupted is returned by a sink Write that was stopped by Interrupt.
var ErrInterrupted = errors.New("sink interrupted")

// NewTCPServer serves receivers that connect to ln. The server owns ln.
func NewTCPServer(ln net.Listener, enc adcsim.Encoding) *TCPServer {
	return &TCPServer{encoder: encoder{enc: enc}, ln: ln}
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr { return s.ln.Addr() }

func (s *TCPServer) receiver() (net.Conn, error) {
	s.mu.Lock()
	conn, interrupted := s.conn, s.interrupted
	s.mu.Unlock()
	if interrupted {
		return nil, ErrInterrupted
	}
	if conn != nil {
		return conn, nil
	}

	conn, err := s.ln.Accept()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.interrupted {
			return nil, ErrInterrupted
		}
		return nil, err
	}
	adcsim.UpdateLogger.Printf("TCP receiver connected from %v", conn.RemoteAddr())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupted {
		conn.Close()
		return nil, ErrInterrupted
	}
	s.conn = conn
	return conn, nil
}

// Write sends one sample to the current receiver, first waiting for one if
// necessary.
func (s *TCPServer) Write(smp adcsim.Sample) error {
	b, err := s.encode(smp)
	if err != nil {
		return err
	}
	conn, err := s.receiver()
	if err != nil {
		return err
	}
	if _, err := conn.Write(b); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.interrupted {
			return ErrInterrupted
		}
		adcsim.UpdateLogger.Printf("TCP receiver %v disconnected: %v", conn.RemoteAddr(), err)
		conn.Close()
		s.conn = nil
	}
	return nil
}

// Interrupt stops a Write that is waiting for, or writing to, a receiver.
// Every later Write fails with ErrInterrupted.
func (s *TCPServer) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	s.ln.Close()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Close stops listening and disconnects any receiver.
func (s *TCPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
		s.conn = nil
	}
	return err
}

// UDP sends each encoded sample as its own datagram.
type UDP struct {
	encoder
	conn net.Conn
}

// DialUDP prepares to send datagrams to addr.
func DialUDP(addr string, enc adcsim.Encoding) (*UDP, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp sink: %w", err)
	}
	return &UDP{encoder: encoder{enc: enc}, conn: conn}, nil
}

// Write sends one datagram. A datagram refused because nobody is listening is
// dropped without error.
func (u *UDP) Write(s adcsim.Sample) error {
	b, err := u.encode(s)
	if err != nil {
		return err
	}
	if _, err := u.conn.Write(b); err != nil && !errors.Is(err, syscall.ECONNREFUSED) {
		return err
	}
	return nil
}

// Close releases the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
