package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/sinks"
)

func main() {
	var nprint, limit int
	var binary bool
	var tcpAddr, udpAddr, zmqEndpoint string
	flag.IntVar(&nprint, "n", 10, "Number of samples to print")
	flag.IntVar(&limit, "count", 0, "Stop after this many samples (0 means at end of input)")
	flag.BoolVar(&binary, "binary", false, "Input is 40-byte binary records, not text lines")
	flag.StringVar(&tcpAddr, "tcp", "", "Connect to a tcp-server sink at host:port")
	flag.StringVar(&udpAddr, "udp", "", "Listen for udp sink datagrams at host:port")
	flag.StringVar(&zmqEndpoint, "zmq", "", "Subscribe to a zmq sink at this endpoint")

	flag.Usage = func() {
		fmt.Println("adcdump, for printing the first N samples of an adcsim stream and summarizing it")
		fmt.Println("Usage: adcdump [flags] [file]   (standard input when no file and no network flag)")
		flag.PrintDefaults()
	}
	flag.Parse()

	enc := adcsim.TextEncoding
	if binary {
		enc = adcsim.BinaryEncoding
	}

	var sr sampleReader
	switch {
	case tcpAddr != "":
		conn, err := net.Dial("tcp", tcpAddr)
		if err != nil {
			fail(err)
		}
		defer conn.Close()
		sr = newStreamReader(conn, enc)

	case udpAddr != "":
		conn, err := net.ListenPacket("udp", udpAddr)
		if err != nil {
			fail(err)
		}
		defer conn.Close()
		sr = &packetReader{enc: enc, conn: conn, buf: make([]byte, 65536)}

	case zmqEndpoint != "":
		zr, err := newZMQReader(zmqEndpoint, sinks.DefaultTopic, enc)
		if err != nil {
			fail(err)
		}
		defer zr.socket.Close()
		sr = zr

	default:
		var in io.Reader = os.Stdin
		if flag.NArg() > 0 && flag.Arg(0) != "-" {
			f, err := os.Open(flag.Arg(0))
			if err != nil {
				fail(err)
			}
			defer f.Close()
			in = f
		}
		sr = newStreamReader(in, enc)
	}

	summary, err := dump(sr, os.Stdout, nprint, limit)
	fmt.Println(report(summary, bytesRead(sr)))
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func fail(err error) {
	fmt.Printf("error: %v\n", err)
	os.Exit(1)
}
