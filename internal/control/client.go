package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"holdtalk/internal/session"
)

// Client talks to the daemon over its unix socket. One connection carries
// many requests; it is not safe for concurrent use.
type Client struct {
	conn net.Conn
	sc   *bufio.Scanner
	enc  *json.Encoder
}

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon: %w", err)
	}
	return &Client{conn: conn, sc: bufio.NewScanner(conn), enc: json.NewEncoder(conn)}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Do sends req and decodes one response line into out.
func (c *Client) Do(req Request, out any) error {
	_ = c.conn.SetDeadline(time.Now().Add(Timeout))
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()
	if err := c.enc.Encode(req); err != nil {
		return err
	}
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return err
		}
		return fmt.Errorf("daemon closed connection")
	}
	return json.Unmarshal(c.sc.Bytes(), out)
}

func (c *Client) Move(x, y, width, height float64) (MoveResponse, error) {
	var resp MoveResponse
	err := c.Do(Request{Op: OpMove, X: x, Y: y, Width: width, Height: height}, &resp)
	return resp, err
}

func (c *Client) Up(x, y, width, height float64) (UpResponse, error) {
	var resp UpResponse
	err := c.Do(Request{Op: OpUp, X: x, Y: y, Width: width, Height: height}, &resp)
	return resp, err
}

func (c *Client) Status() (Status, error) {
	var st Status
	err := c.Do(Request{Op: OpStatus}, &st)
	return st, err
}

// Watch streams session updates to fn until fn returns false or the
// connection ends.
func (c *Client) Watch(fn func(session.Update) bool) error {
	if err := c.enc.Encode(Request{Op: OpWatch}); err != nil {
		return err
	}
	for c.sc.Scan() {
		var u session.Update
		if err := json.Unmarshal(c.sc.Bytes(), &u); err != nil {
			return err
		}
		if !fn(u) {
			return nil
		}
	}
	return c.sc.Err()
}
