package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startTestServer starts a real Server on a loopback port and returns it along
// with the address to dial, stopping it on test cleanup.
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := testConfig()
	s := newServer(cfg, testLog(), realClock{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s.mu.Lock()
	s.listener = ln
	s.started = s.clock.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.sweep()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.handleConn(conn)
		}
	}()

	t.Cleanup(func() {
		close(s.shutdown)
		_ = ln.Close()
	})

	return s, ln.Addr().String()
}

// ircTestClient is a thin hand-rolled line-oriented client used only by
// tests, grounded on the teacher's tests/ package testify harness style
// (minus the server-linking machinery, which this server doesn't have).
type ircTestClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialTestClient(t *testing.T, addr string) *ircTestClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return &ircTestClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *ircTestClient) send(line string) {
	_, _ = c.conn.Write([]byte(line + "\r\n"))
}

func (c *ircTestClient) readLine(t *testing.T) string {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err, "reading a line from the server")
	return strings.TrimRight(line, "\r\n")
}

// waitForLine reads lines until one contains substr or the deadline passes.
func (c *ircTestClient) waitForLine(t *testing.T, substr string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line := c.readLine(t)
		if strings.Contains(line, substr) {
			return line
		}
	}
	require.Fail(t, fmt.Sprintf("never saw a line containing %q", substr))
	return ""
}

func (c *ircTestClient) register(t *testing.T, nick string) {
	t.Helper()
	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :" + nick + " Real Name")
	// The harness runs the real sweeper, which sends the PING; answer it so
	// registration can complete.
	c.waitForLine(t, "PING")
	c.send("PONG :irc.test")
	c.waitForLine(t, " 001 ")
}

// (i) registration burst: a client completing NICK/USER/PONG receives the
// welcome burst, from 001 through RPL_ENDOFMOTD.
func TestRegistrationBurst(t *testing.T) {
	_, addr := startTestServer(t)

	client := dialTestClient(t, addr)
	defer client.conn.Close()

	client.send("NICK alice")
	client.send("USER alice 0 * :Alice Example")

	client.waitForLine(t, "PING")
	client.send("PONG :irc.test")

	client.waitForLine(t, " 001 ")
	client.waitForLine(t, " 376 ")
}

// (ii) JOIN creates a channel and grants the joiner op.
func TestJoinCreatesChannelWithOp(t *testing.T) {
	s, addr := startTestServer(t)

	client := dialTestClient(t, addr)
	defer client.conn.Close()
	client.register(t, "alice")

	client.send("JOIN #test")
	client.waitForLine(t, "JOIN #test")
	client.waitForLine(t, " 366 ")

	s.mu.Lock()
	ch := s.channels["#test"]
	var gotOp bool
	for _, m := range ch.Members {
		if m.Nick == "alice" {
			gotOp = m.Channels["#test"]['o']
		}
	}
	s.mu.Unlock()

	require.True(t, gotOp, "first joiner should hold op")
}

// (iii) a second joiner does not receive op.
func TestSecondJoinerHasNoOp(t *testing.T) {
	s, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	defer alice.conn.Close()
	alice.register(t, "alice")
	alice.send("JOIN #test")
	alice.waitForLine(t, " 366 ")

	bob := dialTestClient(t, addr)
	defer bob.conn.Close()
	bob.register(t, "bob")
	bob.send("JOIN #test")
	bob.waitForLine(t, " 366 ")

	s.mu.Lock()
	ch := s.channels["#test"]
	var bobHasOp bool
	for _, m := range ch.Members {
		if m.Nick == "bob" {
			bobHasOp = m.Channels["#test"]['o']
		}
	}
	s.mu.Unlock()

	require.False(t, bobHasOp)
}

// (iv) nick collision is rejected with 432.
func TestNickCollision(t *testing.T) {
	_, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	defer alice.conn.Close()
	alice.register(t, "alice")

	bob := dialTestClient(t, addr)
	defer bob.conn.Close()
	bob.send("NICK alice")
	bob.waitForLine(t, " 432 ")
}

// (v) a redundant op grant produces no second MODE broadcast.
func TestOpGrantIdempotence(t *testing.T) {
	_, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	defer alice.conn.Close()
	alice.register(t, "alice")
	alice.send("JOIN #test")
	alice.waitForLine(t, " 366 ")

	bob := dialTestClient(t, addr)
	defer bob.conn.Close()
	bob.register(t, "bob")
	bob.send("JOIN #test")
	bob.waitForLine(t, " 366 ")
	alice.waitForLine(t, "JOIN #test") // alice sees bob's join

	alice.send("MODE #test +o bob")
	alice.waitForLine(t, "MODE #test +o bob")

	alice.send("MODE #test +o bob")

	// The second grant is a silent no-op: the very next line alice sees
	// should not be another "+o bob" MODE line. PART gives us a deterministic
	// marker to read up to.
	alice.send("PART #test")
	line := alice.readLine(t)
	require.Contains(t, line, "PART #test")
	require.NotContains(t, line, "+o bob")
}

// (vi) QUIT is relayed to a channel co-member.
func TestQuitFansOutToCoMembers(t *testing.T) {
	_, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	defer alice.conn.Close()
	alice.register(t, "alice")
	alice.send("JOIN #test")
	alice.waitForLine(t, " 366 ")

	bob := dialTestClient(t, addr)
	defer bob.conn.Close()
	bob.register(t, "bob")
	bob.send("JOIN #test")
	alice.waitForLine(t, "JOIN #test")

	bob.send("QUIT :goodbye")
	alice.waitForLine(t, "QUIT :goodbye")
}
