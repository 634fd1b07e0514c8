package sinks

import (
	"fmt"

	"github.com/pebbe/zmq4"
	"github.com/usnistgov/adcsim"
)

// DefaultTopic is the first frame of every message published by the ZMQ sink.
const DefaultTopic = "adc"

// ZMQ publishes each sample as a two-frame message, topic then encoded
// sample, on a PUB socket. Samples published while no subscriber is connected
// are dropped, as are samples beyond the high-water mark of a slow subscriber.
type ZMQ struct {
	encoder
	topic  string
	socket *zmq4.Socket
}

// NewZMQ binds a PUB socket to endpoint, e.g. "tcp://*:5600".
func NewZMQ(endpoint, topic string, enc adcsim.Encoding) (*ZMQ, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("zmq bind %s: %w", endpoint, err)
	}
	return &ZMQ{encoder: encoder{enc: enc}, topic: topic, socket: socket}, nil
}

// Write publishes one sample.
func (z *ZMQ) Write(s adcsim.Sample) error {
	b, err := z.message(s)
	if err != nil {
		return err
	}
	if _, err := z.socket.Send(z.topic, zmq4.SNDMORE); err != nil {
		return err
	}
	_, err = z.socket.SendBytes(b, 0)
	return err
}

// Close closes the socket.
func (z *ZMQ) Close() error {
	return z.socket.Close()
}
