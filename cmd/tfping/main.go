// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command tfping exercises a tinyframe link end to end: as a pinger it
// sends one query and waits for the matching response, as a responder it
// echoes every ping payload back on the inbound frame id. The transport
// is a serial device or a TCP endpoint; both peers must run the same
// wiring profile.
package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"
	"time"

	"go.bug.st/serial"

	"code.hybscloud.com/tinyframe"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "", "Serial device path (e.g. /dev/ttyUSB0)")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	tcpDial      = flag.String("tcp", "", "TCP address to dial instead of a serial device")
	tcpListen    = flag.String("tcp-listen", "", "TCP address to accept one peer on")
	respond      = flag.Bool("respond", false, "Run as responder (slave) and echo pings")
	payload      = flag.String("payload", "ping", "Ping payload")
	timeoutTicks = flag.Int("timeout", 50, "Response timeout in ticks")
	tickEvery    = flag.Duration("tick", 100*time.Millisecond, "Tick interval")
)

const typePing = 0x20

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	conn, err := openTransport()
	if err != nil {
		log.Fatalf("Failed to open transport: %v", err)
	}
	defer conn.Close()

	role := tinyframe.PeerMaster
	if *respond {
		role = tinyframe.PeerSlave
	}
	engine, err := tinyframe.New(role, tinyframe.WriterSink(conn), tinyframe.WithUARTProfile())
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	done := make(chan int, 1)
	if *respond {
		if err := engine.AddTypeListener(typePing, echoPing); err != nil {
			log.Fatalf("Failed to register ping listener: %v", err)
		}
		log.Printf("Responding to pings")
	} else {
		msg := &tinyframe.Msg{Type: typePing, Payload: []byte(*payload)}
		reply := func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
			if m.Payload == nil {
				log.Printf("Ping timed out after %d ticks", *timeoutTicks)
				done <- 1
				return true
			}
			log.Printf("Response id=%#x payload=%q", m.FrameID, m.Payload)
			done <- 0
			return true
		}
		if err := engine.Query(msg, reply, *timeoutTicks); err != nil {
			log.Fatalf("Failed to send ping: %v", err)
		}
		log.Printf("Ping sent id=%#x payload=%q", msg.FrameID, *payload)
	}

	// One goroutine reads the transport; the main loop owns the engine.
	bytesCh := make(chan []byte, 16)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				bytesCh <- chunk
			}
			if err != nil {
				close(bytesCh)
				return
			}
		}
	}()

	ticker := time.NewTicker(*tickEvery)
	defer ticker.Stop()
	for {
		select {
		case chunk, ok := <-bytesCh:
			if !ok {
				log.Printf("Transport closed")
				os.Exit(1)
			}
			engine.Accept(chunk)
		case <-ticker.C:
			engine.Tick()
		case code := <-done:
			os.Exit(code)
		}
	}
}

func echoPing(e *tinyframe.Engine, m *tinyframe.Msg) bool {
	log.Printf("Ping id=%#x payload=%q", m.FrameID, m.Payload)
	if err := e.Respond(&tinyframe.Msg{FrameID: m.FrameID, Type: m.Type, Payload: m.Payload}, false); err != nil {
		log.Printf("Failed to respond: %v", err)
	}
	return true
}

func openTransport() (io.ReadWriteCloser, error) {
	switch {
	case *tcpListen != "":
		ln, err := net.Listen("tcp", *tcpListen)
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		log.Printf("Waiting for peer on %s", *tcpListen)
		return ln.Accept()
	case *tcpDial != "":
		return net.Dial("tcp", *tcpDial)
	default:
		if *serialDevice == "" {
			log.Fatalf("One of -serial, -tcp, or -tcp-listen is required")
		}
		mode := &serial.Mode{
			BaudRate: *baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		return serial.Open(*serialDevice, mode)
	}
}
