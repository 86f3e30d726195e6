package main

import (
	"bufio"
	"net"
	"strings"

	"github.com/horgh/irc"
)

// Conn wraps a client's TCP connection with buffered line I/O and outbound
// wire encoding, grounded on the teacher's net.go Conn type.
//
// Unlike the teacher's Conn, we don't apply a read/write deadline here --
// idle and registration timeouts are entirely the sweeper's job (§4.D), so
// layering a second timeout mechanism here would just be two sources of
// truth for the same policy.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func newConn(c net.Conn, recvBuffer int) *Conn {
	size := recvBuffer
	if size <= 0 {
		size = 4096
	}
	return &Conn{
		conn: c,
		r:    bufio.NewReaderSize(c, size),
		w:    bufio.NewWriter(c),
	}
}

// readLine reads a single line, tolerant of bare LF framing. The trailing
// CR (if present) and LF are stripped from the returned string.
func (c *Conn) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeMessage encodes m with the RFC-compliant irc.Message encoder and
// writes the result to the socket immediately.
func (c *Conn) writeMessage(m irc.Message) error {
	buf, err := m.Encode()
	// ErrTruncated still produced a usable (truncated) line; anything else is
	// fatal to the connection.
	if err != nil && err != irc.ErrTruncated {
		return err
	}

	if _, werr := c.w.WriteString(buf); werr != nil {
		return werr
	}
	return c.w.Flush()
}

func (c *Conn) close() error {
	return c.conn.Close()
}
