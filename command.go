package main

import (
	"fmt"
	"strings"

	"github.com/horgh/irc"
)

// preAuthCommands is the allow-list before registration completes, per
// §4.B. Anything else hits numNotRegistered.
var preAuthCommands = map[string]commandHandler{
	"NICK": cmdNick,
	"USER": cmdUser,
	"PONG": cmdPong,
	"QUIT": cmdQuit,
	"CAP":  cmdCap,
}

// postAuthCommands is the allow-list after registration, per §4.B.
// Anything else hits numUnknownCommand.
var postAuthCommands = map[string]commandHandler{
	"PRIVMSG":  cmdPrivmsg,
	"NOTICE":   cmdNotice,
	"NICK":     cmdNick,
	"USER":     cmdUser,
	"PONG":     cmdPong,
	"QUIT":     cmdQuit,
	"WHOIS":    cmdWhois,
	"ISON":     cmdIson,
	"USERHOST": cmdUserhost,
	"JOIN":     cmdJoin,
	"PART":     cmdPart,
	"MODE":     cmdMode,
	"LUSERS":   cmdLusers,
	"MOTD":     cmdMotd,
	"RULES":    cmdRules,
}

// trailing strips a leading ':' from the first tail token and rejoins the
// remainder, per §4.B's trailing-parameter rule. start is the index into
// args where the free-form tail begins.
func trailing(args []string, start int) string {
	if start >= len(args) {
		return ""
	}
	text := strings.Join(args[start:], " ")
	return strings.TrimPrefix(text, ":")
}

func cmdCap(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNeedMoreParams("CAP")
		return
	}

	switch strings.ToUpper(args[0]) {
	case "LS":
		c.send(irc.Message{
			Prefix: c.fqdn(), Command: "CAP",
			Params: []string{c.displayNick(), "LS", "account-notify multi-prefix userhost-in-names"},
		})
	default:
		c.numInvalidCapSubcommand(args[0])
	}
}

func cmdNick(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNoNickGiven("NICK")
		return
	}

	nick := clamp(args[0], maxNickLength)
	if !isValidNick(nick) {
		c.numErroneousNickname()
		return
	}

	key := canonicalize(nick)
	if holder, taken := c.server.nicks[key]; taken && holder != c.AddrKey {
		c.numNickInUse(nick)
		return
	}

	oldIdentifier := c.identifier()
	wasAuthorised := c.authorised
	old := c.Nick

	// Claim the registry slot immediately, whether or not the session has
	// authorised yet -- two sessions racing NICK before either authorises
	// must not both pass the collision check above and then both register,
	// per §3/Testable Property 3. original_source/System/server.py's
	// register_nick runs unconditionally from cmd_nick for the same reason.
	if old != "" {
		if existingKey, ok := c.server.nicks[canonicalize(old)]; ok && existingKey == c.AddrKey {
			delete(c.server.nicks, canonicalize(old))
			delete(c.server.nicksCased, canonicalize(old))
		}
	}
	c.server.nicks[key] = c.AddrKey
	c.server.nicksCased[key] = nick

	c.Nick = nick

	if wasAuthorised {
		union := c.server.coMemberUnion(c)
		nickMsg := irc.Message{Prefix: oldIdentifier, Command: "NICK", Params: []string{nick}}
		c.send(nickMsg)
		for _, member := range union {
			member.send(nickMsg)
		}
		return
	}

	c.checkAuthorisation()
}

func cmdUser(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) < 4 {
		c.numNeedMoreParams("USER")
		return
	}

	if c.User != "" {
		c.numAlreadyRegistered()
		return
	}

	username := args[0]
	if !isAlphanumeric(username) {
		go c.server.closeSession(c, "Hostile username", "Hostile username")
		return
	}

	c.User = clamp(username, maxIdentLength)
	c.RealName = clamp(trailing(args, 3), maxIdentLength)

	c.checkAuthorisation()
}

func cmdPong(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if !c.pongPending {
		return
	}

	token := trailing(args, 0)
	if token != c.fqdn() {
		return
	}

	c.pongPending = false
	c.checkAuthorisation()
}

func cmdQuit(c *Client, args []string) {
	reason := "Client Quit"
	if t := trailing(args, 0); t != "" {
		reason = t
	}

	// closeSession sends the single ERROR :Closing Link: ... line itself
	// (§7); the QUIT fan-out keeps the bare reason, the close line gets it
	// prefixed with "Quit: ", per original_source/System/client.py's
	// close_link/cmd_quit and spec §8 scenario (vi).
	go c.server.closeSession(c, reason, "Quit: "+reason)
}

func cmdPrivmsg(c *Client, args []string) { relayMessage(c, args, "PRIVMSG") }
func cmdNotice(c *Client, args []string)  { relayMessage(c, args, "NOTICE") }

func relayMessage(c *Client, args []string, command string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNoRecipient(command)
		return
	}
	text := trailing(args, 1)
	if text == "" {
		c.numNoTextToSend()
		return
	}

	target := args[0]
	if strings.HasPrefix(target, "#") {
		ch, exists := c.server.channels[canonicalize(target)]
		if !exists {
			c.numNoSuchChannel(target)
			return
		}
		if command == "NOTICE" {
			ch.handleNotice(c, text)
		} else {
			ch.handleMessage(c, text)
		}
		return
	}

	destAddr, exists := c.server.nicks[canonicalize(target)]
	if !exists {
		c.numNoSuchNick(target)
		return
	}
	dest := c.server.clients[destAddr]
	if dest == nil {
		c.numNoSuchNick(target)
		return
	}
	dest.send(irc.Message{Prefix: c.identifier(), Command: command, Params: []string{target, text}})
	c.server.log.custom(command, fmt.Sprintf("[%s to %s]: %s", c.displayNick(), target, text))
}

func cmdJoin(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNeedMoreParams("JOIN")
		return
	}

	for _, name := range strings.Split(args[0], ",") {
		if !strings.HasPrefix(name, "#") {
			c.numNoSuchChannel(name)
			continue
		}
		name = clamp(name, maxChannelLength)
		key := canonicalize(name)

		if _, member := c.Channels[key]; member {
			continue
		}

		ch, exists := c.server.channels[key]
		if !exists {
			ch = newChannel(name, c.server.clock.Now())
			c.server.channels[key] = ch
			c.server.channelsCased[key] = name
		}

		ch.join(c)
	}
}

func cmdPart(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNeedMoreParams("PART")
		return
	}

	reason := trailing(args, 1)

	for _, name := range strings.Split(args[0], ",") {
		key := canonicalize(name)

		ch, exists := c.server.channels[key]
		if !exists {
			c.numNoSuchChannel(name)
			continue
		}
		if _, member := c.Channels[key]; !member {
			c.numNotOnChannel(name)
			continue
		}

		if ch.part(c, reason) {
			delete(c.server.channels, key)
			delete(c.server.channelsCased, key)
		}
	}
}

func cmdMode(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNeedMoreParams("MODE")
		return
	}

	target := args[0]

	if strings.HasPrefix(target, "#") {
		ch, exists := c.server.channels[canonicalize(target)]
		if !exists {
			c.numNoSuchChannel(target)
			return
		}

		if len(args) == 1 {
			c.numChannelModes(ch)
			c.numChannelCreation(ch)
			return
		}

		ch.handleMode(c, args[1], args[2:])
		return
	}

	if len(args) == 1 {
		c.numUserModes()
		return
	}

	for _, chg := range deconstructModes(userModes, args[1], nil) {
		c.applySelfMode(chg.Add, chg.Mode)
	}
}

func cmdWhois(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	if len(args) == 0 {
		c.numNeedMoreParams("WHOIS")
		return
	}

	addr, exists := c.server.nicks[canonicalize(args[0])]
	target := c.server.clients[addr]
	if !exists || target == nil {
		c.numNoSuchNick(args[0])
		c.numEndOfWhois(args[0])
		return
	}

	c.numWhoisUser(target)
	c.numWhoisConnectingFrom(target)
	if len(target.Channels) > 0 {
		c.numWhoisChannels(target)
	}
	c.numWhoisServer(target)
	c.numWhoisIdle(target)
	c.numEndOfWhois(target.Nick)
}

func cmdIson(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	var present []string
	for _, nick := range args {
		if addr, ok := c.server.nicks[canonicalize(nick)]; ok {
			if target := c.server.clients[addr]; target != nil {
				present = append(present, target.Nick)
			}
		}
	}
	c.numIson(present)
}

func cmdUserhost(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	var entries []string
	for _, nick := range args {
		addr, ok := c.server.nicks[canonicalize(nick)]
		if !ok {
			continue
		}
		target := c.server.clients[addr]
		if target == nil {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s=%s", target.Nick, target.identifier()))
	}
	c.numUserhost(entries)
}

func cmdLusers(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.numLusersTotal()
	c.numLusersLocalTotal()
	c.numLusersLocalUsers()
	c.numLusersGlobalUsers()
}

func cmdMotd(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.numMOTDStart()
	c.numMOTD()
	c.numMOTDEnd()
}

func cmdRules(c *Client, args []string) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	c.numRulesStart()
	c.numRules()
	c.numRulesEnd()
}

// coMemberUnion computes the union of co-members across every channel of
// the subject, excluding the subject itself, per §4.D. Caller must hold
// server.mu.
func (s *Server) coMemberUnion(subject *Client) map[string]*Client {
	union := map[string]*Client{}
	for name := range subject.Channels {
		ch := s.channels[name]
		if ch == nil {
			continue
		}
		for _, key := range ch.order {
			if key == subject.AddrKey {
				continue
			}
			if member := ch.Members[key]; member != nil {
				union[key] = member
			}
		}
	}
	return union
}
