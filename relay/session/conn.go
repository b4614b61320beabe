package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
)

// Conn is the line-oriented view of a client connection a Session works on.
type Conn interface {
	ReadLine() (string, error)
	Send(msg string) error
	Close() error
}

// LineConn reads newline-delimited lines from a net.Conn.
type LineConn struct {
	conn   net.Conn
	reader *bufio.Reader

	closeOnce sync.Once
	closeErr  error
}

func NewLineConn(conn net.Conn) *LineConn {
	return &LineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// ReadLine returns the next line without its terminator. A final line that
// is not newline-terminated is returned before io.EOF.
func (c *LineConn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimLine(line), nil
		}
		return "", err
	}
	return trimLine(line), nil
}

func (c *LineConn) Send(msg string) error {
	_, err := io.WriteString(c.conn, msg)
	return err
}

// Close may be called more than once, also concurrently with a blocked ReadLine.
func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *LineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func trimLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
