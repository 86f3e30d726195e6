package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/horgh/irc"
	"golang.org/x/time/rate"
)

// sessionState names the points along a session's lifecycle, per §4.B. It's
// kept mostly for documentation and debugging -- the gating logic itself
// reads Nick/User/RealName/pongPending directly, the same way the source
// did.
type sessionState int

const (
	stateConnected sessionState = iota
	stateNickKnown
	stateUserKnown
	statePongAwaited
	stateAuthorised
	stateTerminated
)

// Client holds all per-connection state: the "session" of §3.
//
// Every field below is read and written only while holding Server.mu --
// the registry's single coarse lock is extended to cover session state,
// since sessions are visible to (and mutated on behalf of) other clients'
// goroutines (NICK/QUIT fan-out, channel broadcasts, WHOIS). The exceptions
// are the fields fixed at construction and never reassigned afterward:
// AddrKey, IP, Port, conn, writeChan, limiter, server.
type Client struct {
	server *Server

	AddrKey string
	IP      net.IP
	Port    int

	conn      *Conn
	writeChan chan irc.Message
	limiter   *rate.Limiter

	Nick     string
	User     string
	RealName string

	Hostname       string
	MaskedHostname string

	Modes map[byte]bool

	// Channels maps a canonicalized (lowercased) channel name to this
	// client's power set within that channel.
	Channels map[string]map[byte]bool

	state      sessionState
	authorised bool

	pongSent    time.Time
	pongPending bool

	connected time.Time
	lastCmd   time.Time

	alive bool
}

// newClient builds a Client for a freshly accepted connection. It does not
// register the client with the server -- the accept loop does that.
func newClient(s *Server, conn net.Conn) *Client {
	tcpAddr, _ := net.ResolveTCPAddr("tcp", conn.RemoteAddr().String())

	ip := "0.0.0.0"
	port := 0
	if tcpAddr != nil {
		ip = tcpAddr.IP.String()
		port = tcpAddr.Port
	}

	now := s.clock.Now()

	c := &Client{
		server:         s,
		AddrKey:        ip + ":" + strconv.Itoa(port),
		IP:             tcpAddr.IP,
		Port:           port,
		conn:           newConn(conn, s.Config.Server.RecvBuffer),
		writeChan:      make(chan irc.Message, 100),
		limiter:        rate.NewLimiter(rate.Limit(50), 100),
		Hostname:       ip,
		Modes:          map[byte]bool{},
		Channels:       map[string]map[byte]bool{},
		connected:      now,
		lastCmd:        now,
		alive:          true,
	}
	c.MaskedHostname = maskHostname(ip, c.Hostname)

	return c
}

// currentHostname returns the hostname the client should be displayed with:
// the masked form if user mode +x is set, the resolved hostname otherwise.
// Caller must hold server.mu.
func (c *Client) currentHostname() string {
	if c.Modes['x'] {
		return c.MaskedHostname
	}
	return c.Hostname
}

// identifier returns the canonical prefix string used on relayed lines:
// nick!user@host once authorised, ip:port before that. Caller must hold
// server.mu.
func (c *Client) identifier() string {
	if c.authorised {
		return fmt.Sprintf("%s!%s@%s", c.Nick, c.User, c.currentHostname())
	}
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}

// displayNick returns the client's nick, or "*" if it hasn't set one yet.
// Caller must hold server.mu.
func (c *Client) displayNick() string {
	if c.Nick == "" {
		return "*"
	}
	return c.Nick
}

// closeIdentifier returns the "<nick-or-*>[<hostname>]" form used on the
// ERROR line a session receives just before its socket closes, per §7 --
// distinct from identifier()'s nick!user@host wire prefix. Caller must hold
// server.mu.
func (c *Client) closeIdentifier() string {
	return fmt.Sprintf("%s[%s]", c.displayNick(), c.currentHostname())
}

// send enqueues an outbound message for this client's write loop. It never
// blocks: if the client's queue is full (a flooding or wedged reader on the
// far end), we consider the session dead and tear it down rather than let
// one slow client back up every sender into it. Caller must hold server.mu.
func (c *Client) send(m irc.Message) {
	if !c.alive {
		return
	}

	select {
	case c.writeChan <- m:
	default:
		c.server.log.custom("WARNING", fmt.Sprintf("%s: send queue full, dropping connection", c.identifier()))
		go c.server.closeSession(c, "SendQ exceeded", "SendQ exceeded")
	}
}

// readLoop continuously reads lines from the client's socket, tokenises
// them, and dispatches commands, until the connection dies or the session
// is marked not alive.
func (c *Client) readLoop() {
	for {
		line, err := c.conn.readLine()
		if err != nil {
			if err != io.EOF {
				c.server.log.custom("DISCONNECT", fmt.Sprintf("%s: read error: %s", c.AddrKey, err))
			}
			c.server.closeSession(c, "Connection reset", "Connection reset")
			return
		}

		c.handleLine(line)

		c.server.mu.Lock()
		dead := !c.alive
		c.server.mu.Unlock()
		if dead {
			return
		}
	}
}

// writeLoop drains the client's outbound queue, paced by its rate limiter,
// and writes each message to the socket. It exits (and closes the
// underlying connection) once writeChan is closed and drained.
func (c *Client) writeLoop() {
	for m := range c.writeChan {
		_ = c.limiter.Wait(context.Background())

		if err := c.conn.writeMessage(m); err != nil {
			c.server.log.custom("DISCONNECT", fmt.Sprintf("%s: write error: %s", c.AddrKey, err))
			go c.server.closeSession(c, "Write error", "Write error")
			continue
		}

		c.server.log.custom("RAW", fmt.Sprintf("[%s] -> %s %s", c.AddrKey, m.Command, strings.Join(m.Params, " ")))
	}

	_ = c.conn.close()
}

// handleLine parses one line of input and dispatches the command it names.
func (c *Client) handleLine(line string) {
	if line == "" {
		return
	}

	tokens := strings.Split(line, " ")
	if len(tokens) == 0 || tokens[0] == "" {
		return
	}

	command := strings.ToUpper(tokens[0])
	args := tokens[1:]

	c.server.mu.Lock()
	c.lastCmd = c.server.clock.Now()
	authorised := c.authorised
	c.server.mu.Unlock()

	c.server.log.custom("RAW", fmt.Sprintf("[%s] <- %s %s", c.AddrKey, command, strings.Join(args, " ")))

	var handler commandHandler
	var known bool

	if authorised {
		handler, known = postAuthCommands[command]
	} else {
		handler, known = preAuthCommands[command]
	}

	if !known {
		c.server.mu.Lock()
		defer c.server.mu.Unlock()
		if authorised {
			c.numUnknownCommand(command)
		} else {
			c.numNotRegistered(command)
		}
		return
	}

	c.server.log.custom("COMMAND", fmt.Sprintf("%s: %s", c.AddrKey, command))

	handler(c, args)
}

// commandHandler implements one IRC command. It runs with no locks held;
// handlers that touch shared state take server.mu themselves. This is the
// explicit dispatch table called for in §9, replacing the source's
// reflection-based "cmd_" + command.lower() lookup.
type commandHandler func(c *Client, args []string)

// checkAuthorisation promotes the session to Authorised once nick, user,
// realname are set and the ping/pong handshake has completed, and sends the
// welcome burst. Caller must hold server.mu.
func (c *Client) checkAuthorisation() {
	if c.authorised {
		return
	}
	if c.Nick == "" || c.User == "" || c.RealName == "" {
		return
	}
	if c.pongPending || c.pongSent.IsZero() {
		return
	}

	c.authorised = true
	c.state = stateAuthorised

	s := c.server

	c.send(irc.Message{Prefix: s.Config.Server.FQDN, Command: "001", Params: []string{
		c.Nick, fmt.Sprintf("Welcome to the %s Network %s", s.Config.Server.Name, c.identifier()),
	}})
	c.send(irc.Message{Prefix: s.Config.Server.FQDN, Command: "002", Params: []string{
		c.Nick, fmt.Sprintf("Your host is %s, running version pyrcd %s", s.Config.Server.FQDN, serverRevision),
	}})
	c.send(irc.Message{Prefix: s.Config.Server.FQDN, Command: "003", Params: []string{
		c.Nick, fmt.Sprintf("This server was created %s", s.started.Format("Mon Jan 02 15:04:05 2006")),
	}})

	c.numLusersTotal()
	c.numLusersLocalTotal()
	c.numLusersLocalUsers()
	c.numLusersGlobalUsers()

	c.numMOTDStart()
	c.numMOTD()
	c.numMOTDEnd()

	c.applySelfMode(true, 'i')
	c.applySelfMode(true, 'w')
	c.applySelfMode(true, 'x')

	c.server.log.custom("AUTHORISED", c.identifier())
}

// applySelfMode toggles a user mode if its current value disagrees with the
// requested sign, and if it changed, broadcasts the change to the client
// itself. Caller must hold server.mu.
func (c *Client) applySelfMode(add bool, mode byte) {
	if c.Modes[mode] == add {
		return
	}
	c.Modes[mode] = add

	sign := "-"
	if add {
		sign = "+"
	}
	c.send(irc.Message{Prefix: c.identifier(), Command: "MODE", Params: []string{c.Nick, sign + string(mode)}})
}

// canonicalize folds a nick or channel name to its lookup key.
func canonicalize(s string) string {
	return strings.ToLower(s)
}
