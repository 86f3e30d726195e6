package main

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/horgh/irc"
)

// serverRevision is reported in the 002 welcome line. Grounded on the
// teacher's ircd.go constant of the same role.
const serverRevision = "0.1"

// pingInterval and registrationWindow are the two deadlines the sweeper
// enforces, per §4.D; sweepInterval is how often it runs.
const (
	pingInterval       = 60 * time.Second
	registrationWindow = 10 * time.Second
	sweepInterval      = 1 * time.Second
)

// Server is the connection registry: every live session, every channel,
// and the configuration and log they share. Its mutex is the single coarse
// lock described in §5 -- it guards every mutable field below plus every
// mutable Client/Channel field reached through it.
type Server struct {
	mu sync.Mutex

	Config *Config
	log    *Log
	clock  Clock

	listener net.Listener
	started  time.Time

	// maxClients is the high-water mark of concurrent sessions seen since
	// startup, per §3 -- distinct from Config.Server.ClientLimit, the static
	// accept-loop admission cap. Grounded on
	// original_source/System/server.py's register_client.
	maxClients int

	// clients indexes every live session by its AddrKey.
	clients map[string]*Client

	// nicks maps a canonicalized nick to the AddrKey of the session holding
	// it; nicksCased keeps the original-case spelling for display.
	nicks      map[string]string
	nicksCased map[string]string

	// channels indexes every live channel by its canonicalized name;
	// channelsCased keeps the original-case spelling for display.
	channels      map[string]*Channel
	channelsCased map[string]string

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// newServer constructs a Server ready to Serve. It does not open the
// listening socket itself -- callers call Serve for that.
func newServer(cfg *Config, log *Log, clock Clock) *Server {
	return &Server{
		Config:        cfg,
		log:           log,
		clock:         clock,
		clients:       map[string]*Client{},
		nicks:         map[string]string{},
		nicksCased:    map[string]string{},
		channels:      map[string]*Channel{},
		channelsCased: map[string]string{},
		shutdown:      make(chan struct{}),
	}
}

// Serve opens the listening socket, then accepts connections until
// shutdown is requested. It blocks until the listener closes.
func (s *Server) Serve() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Bind.Address, s.Config.Bind.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.started = s.clock.Now()
	s.mu.Unlock()

	s.log.info(fmt.Sprintf("listening on %s", addr))

	s.wg.Add(1)
	go s.sweep()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				return err
			}
		}

		go s.handleConn(conn)
	}
}

// Shutdown closes the listener and every live connection, and waits for
// background goroutines to finish.
func (s *Server) Shutdown() {
	close(s.shutdown)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	var sessions []*Client
	for _, c := range s.clients {
		sessions = append(sessions, c)
	}
	s.mu.Unlock()

	for _, c := range sessions {
		s.closeSession(c, "Server shutting down", "Server shutting down")
	}

	s.wg.Wait()
}

// errorMessage builds the ERROR line sent just before a connection is
// closed by the server side, per §4.B/§4.D.
func errorMessage(text string) irc.Message {
	return irc.Message{Command: "ERROR", Params: []string{text}}
}

// handleConn registers a freshly accepted connection and runs its
// read/write loops until the session ends.
func (s *Server) handleConn(conn net.Conn) {
	c := newClient(s, conn)

	s.mu.Lock()
	if s.Config.Server.ClientLimit > 0 && len(s.clients) >= s.Config.Server.ClientLimit {
		s.mu.Unlock()
		_ = c.conn.writeMessage(errorMessage("Closing Link: Server is full"))
		_ = conn.Close()
		return
	}
	s.clients[c.AddrKey] = c
	if len(s.clients) > s.maxClients {
		s.maxClients = len(s.clients)
	}
	s.mu.Unlock()

	s.log.custom("CONNECT", c.AddrKey)

	go c.resolveHostname()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()

	c.readLoop()
}

// closeSession tears down one session: it marks it dead, removes it (and
// any nick/channel membership it held) from the registry, notifies every
// co-member once, delivers a final ERROR line to the client itself, and
// closes its outbound queue so writeLoop exits.
//
// reason is the text used in the QUIT line broadcast to co-members;
// closeReason is the text embedded in the ERROR :Closing Link: ... line
// sent to the client itself. The two differ only for an explicit client
// QUIT, where the ERROR line gets a "Quit: " prefix the broadcast QUIT
// doesn't (§7, §8 scenario (vi)); every other termination path passes the
// same text for both.
//
// Safe to call more than once for the same client; later calls are no-ops.
func (s *Server) closeSession(c *Client, reason, closeReason string) {
	s.mu.Lock()

	if !c.alive {
		s.mu.Unlock()
		return
	}
	c.alive = false

	delete(s.clients, c.AddrKey)
	if s.nicks[canonicalize(c.Nick)] == c.AddrKey {
		delete(s.nicks, canonicalize(c.Nick))
		delete(s.nicksCased, canonicalize(c.Nick))
	}

	// Union of co-members across every channel the client is in, per §4.D --
	// one QUIT line per recipient, not one PART per channel.
	union := map[string]*Client{}
	var emptied []string

	for name := range c.Channels {
		ch := s.channels[name]
		if ch == nil {
			continue
		}
		for _, key := range ch.order {
			if member := ch.Members[key]; member != nil && key != c.AddrKey {
				union[key] = member
			}
		}
		if ch.remove(c) {
			emptied = append(emptied, name)
		}
	}
	for _, name := range emptied {
		delete(s.channels, name)
		delete(s.channelsCased, name)
	}

	if c.authorised {
		quitMsg := irc.Message{Prefix: c.identifier(), Command: "QUIT", Params: []string{reason}}
		for _, member := range union {
			member.send(quitMsg)
		}
	}

	// c.alive is already false, so c.send would silently drop this -- enqueue
	// directly, bypassing that check, with the same non-blocking select
	// c.send uses. Non-blocking: a wedged reader on the far end shouldn't hang
	// the goroutine tearing its session down.
	closeLine := errorMessage(fmt.Sprintf("Closing Link: %s (%s)", c.closeIdentifier(), closeReason))
	select {
	case c.writeChan <- closeLine:
	default:
	}

	s.mu.Unlock()

	if c.authorised {
		s.log.custom("DISCONNECT", fmt.Sprintf("%s quit (%s)", c.identifier(), reason))
	}

	close(c.writeChan)
}

// sweep periodically enforces the ping and registration timeouts of §4.D.
func (s *Server) sweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce implements §4.D's inactivity sweep: a client that has never had
// a PING sent gets one now; a client with a PING outstanding for at least
// pingInterval times out; a client still unauthorised after
// registrationWindow times out regardless of PING state.
func (s *Server) sweepOnce() {
	now := s.clock.Now()

	s.mu.Lock()
	var toPing []*Client
	var toKill []*Client
	reasons := map[string]string{}

	for _, c := range s.clients {
		if !c.authorised && now.Sub(c.connected) >= registrationWindow {
			toKill = append(toKill, c)
			reasons[c.AddrKey] = fmt.Sprintf("Ping timeout: %d seconds", int(now.Sub(c.connected).Seconds()))
			continue
		}

		if c.pongPending {
			if now.Sub(c.pongSent) >= pingInterval {
				toKill = append(toKill, c)
				reasons[c.AddrKey] = fmt.Sprintf("Ping timeout: %d seconds", int(now.Sub(c.pongSent).Seconds()))
			}
			continue
		}

		if c.pongSent.IsZero() {
			toPing = append(toPing, c)
		}
	}

	for _, c := range toPing {
		c.pongPending = true
		c.pongSent = now
		c.send(irc.Message{Prefix: s.Config.Server.FQDN, Command: "PING", Params: []string{s.Config.Server.FQDN}})
	}
	s.mu.Unlock()

	for _, c := range toKill {
		s.closeSession(c, reasons[c.AddrKey], reasons[c.AddrKey])
	}
}

// resolveHostname asynchronously looks up a display hostname for c, off
// the read path, per §4.E. On success it overwrites Hostname/MaskedHostname
// under the lock; on failure it logs the miss and the IP (set at
// construction) remains.
func (c *Client) resolveHostname() {
	names, err := net.LookupAddr(c.IP.String())
	if err != nil || len(names) == 0 {
		c.server.log.custom("LOOKUP", fmt.Sprintf("%s could not be resolved, keeping IP as hostname", c.AddrKey))
		return
	}

	host := strings.TrimSuffix(names[0], ".")

	c.server.mu.Lock()
	c.Hostname = host
	c.MaskedHostname = maskHostname(c.IP.String(), host)
	c.server.mu.Unlock()

	c.server.log.custom("LOOKUP", fmt.Sprintf("%s resolved to %s", c.AddrKey, host))
}
