package main

import (
	"fmt"
	"time"

	"github.com/horgh/irc"
)

// topic holds a channel's topic record, per §3.
type topic struct {
	Content string
	SetTime time.Time
	Author  string // "" means never set
}

// Channel holds everything to do with one channel: membership, per-member
// power, topic, and channel-level modes. All mutation happens through
// Server/Client methods that hold server.mu, so Channel itself has no lock
// of its own -- per §5, the registry's single coarse lock also serialises
// channel-level mutations.
type Channel struct {
	// Name is the original-case name; lookups elsewhere use the
	// canonicalized (lowercased) form as the map key.
	Name    string
	Created time.Time
	Topic   topic

	// order keeps membership in join order for deterministic NAMES and
	// broadcast iteration; Members indexes the same set by AddrKey.
	order   []string
	Members map[string]*Client

	Modes map[byte]string

	Destroyed bool
}

func newChannel(name string, now time.Time) *Channel {
	return &Channel{
		Name:    name,
		Created: now,
		Members: map[string]*Client{},
		Modes:   map[byte]string{},
	}
}

// broadcast sends m to every member, in membership order. Caller must hold
// server.mu.
func (ch *Channel) broadcast(m irc.Message) {
	for _, key := range ch.order {
		if member := ch.Members[key]; member != nil {
			member.send(m)
		}
	}
}

// join attaches client to the channel: §4.C join(). The first member into a
// freshly created channel is granted op. Caller must hold server.mu.
func (ch *Channel) join(client *Client) {
	first := len(ch.Members) == 0

	ch.Members[client.AddrKey] = client
	ch.order = append(ch.order, client.AddrKey)

	powers := map[byte]bool{}
	if first {
		powers['o'] = true
	}
	client.Channels[canonicalize(ch.Name)] = powers

	ch.broadcast(irc.Message{Prefix: client.identifier(), Command: "JOIN", Params: []string{ch.Name}})

	var names []string
	for _, key := range ch.order {
		member := ch.Members[key]
		sym := powerSymbolFor(member.Channels[canonicalize(ch.Name)])
		names = append(names, sym+member.Nick)
	}

	if ch.Topic.Author != "" {
		client.numTopic(ch)
		client.numTopicTime(ch)
	}

	client.numNames(ch.Name, names)
	client.numEndOfNames(ch.Name)
}

// part detaches client from the channel: §4.C part(). Returns true if the
// channel is now empty and should be deregistered by the caller. Caller
// must hold server.mu.
func (ch *Channel) part(client *Client, reason string) bool {
	params := []string{ch.Name}
	if reason != "" {
		params = append(params, reason)
	}
	ch.broadcast(irc.Message{Prefix: client.identifier(), Command: "PART", Params: params})

	return ch.remove(client)
}

// remove drops client from the channel's membership without broadcasting
// anything -- used when a session quits, since §4.D specifies a single
// QUIT line to the co-member union rather than a PART per channel. Returns
// true if the channel is now empty. Caller must hold server.mu.
func (ch *Channel) remove(client *Client) bool {
	delete(ch.Members, client.AddrKey)
	for i, key := range ch.order {
		if key == client.AddrKey {
			ch.order = append(ch.order[:i], ch.order[i+1:]...)
			break
		}
	}
	delete(client.Channels, canonicalize(ch.Name))

	ch.Destroyed = len(ch.Members) == 0
	return ch.Destroyed
}

// handleMessage relays a PRIVMSG to every other member, per §4.C.
func (ch *Channel) handleMessage(sender *Client, text string) {
	ch.relay(sender, "PRIVMSG", text)
}

// handleNotice relays a NOTICE the same way handleMessage relays a PRIVMSG.
func (ch *Channel) handleNotice(sender *Client, text string) {
	ch.relay(sender, "NOTICE", text)
}

func (ch *Channel) relay(sender *Client, command, text string) {
	if _, member := sender.Channels[canonicalize(ch.Name)]; !member {
		sender.numNotOnChannel(ch.Name)
		return
	}

	msg := irc.Message{Prefix: sender.identifier(), Command: command, Params: []string{ch.Name, text}}
	for _, key := range ch.order {
		member := ch.Members[key]
		if member == nil || member.AddrKey == sender.AddrKey {
			continue
		}
		member.send(msg)
	}

	sender.server.log.custom(command, fmt.Sprintf("[%s to %s]: %s", ch.Name, sender.displayNick(), text))
}

// handleMode parses and dispatches a channel MODE string, per §4.C
// handle_mode. Caller must hold server.mu.
func (ch *Channel) handleMode(sender *Client, modeString string, args []string) {
	for _, chg := range deconstructModes(powerModes, modeString, args) {
		if handler, known := channelModeHandlers[chg.Mode]; known {
			handler(ch, sender, chg)
		}
	}
}

// channelModeHandlers is the explicit dispatch table for channel power
// modes, replacing the source's "mode_" + char reflection lookup (§9). Only
// 'o' carries the access-control policy §4.C specifies (mode_o); q/a/h/v are
// accepted by the grammar and tracked on the member but aren't privileged
// to grant/revoke here -- the spec only names op mechanics.
var channelModeHandlers = map[byte]func(ch *Channel, sender *Client, chg modeChange){
	'o': (*Channel).modeO,
	'q': (*Channel).modePassthrough,
	'a': (*Channel).modePassthrough,
	'h': (*Channel).modePassthrough,
	'v': (*Channel).modePassthrough,
}

// modePassthrough records a non-operator power flag on a member without the
// access-control policy modeO enforces.
func (ch *Channel) modePassthrough(sender *Client, chg modeChange) {
	addrKey, nickKnown := sender.server.nicks[canonicalize(chg.Arg)]
	if !nickKnown {
		return
	}
	target, onChannel := ch.Members[addrKey]
	if !onChannel {
		return
	}

	powers := target.Channels[canonicalize(ch.Name)]
	if powers == nil || powers[chg.Mode] == chg.Add {
		return
	}
	powers[chg.Mode] = chg.Add

	sign := "-"
	if chg.Add {
		sign = "+"
	}
	ch.broadcast(irc.Message{
		Prefix: sender.identifier(), Command: "MODE",
		Params: []string{ch.Name, sign + string(chg.Mode), target.Nick},
	})
}

// modeO implements §4.C's mode_o handler: grant or revoke channel op.
func (ch *Channel) modeO(sender *Client, chg modeChange) {
	senderPowers, isMember := sender.Channels[canonicalize(ch.Name)]
	if !isMember {
		sender.numChanopPrivsNeeded(ch.Name)
		return
	}
	if !senderPowers['o'] && senderPowers['h'] {
		sender.numHalfopsCannotSetOp()
		return
	}
	if !senderPowers['o'] && !senderPowers['h'] {
		sender.numChanopPrivsNeeded(ch.Name)
		return
	}

	if canonicalize(chg.Arg) == canonicalize(sender.Nick) {
		return
	}

	addrKey, nickKnown := sender.server.nicks[canonicalize(chg.Arg)]
	if !nickKnown {
		sender.numNoSuchNick(chg.Arg)
		return
	}

	target, onChannel := ch.Members[addrKey]
	if !onChannel {
		sender.numUserNotInChannel(chg.Arg, ch.Name)
		return
	}

	powers := target.Channels[canonicalize(ch.Name)]
	if powers == nil || powers['o'] == chg.Add {
		return
	}
	powers['o'] = chg.Add

	sign := "-"
	if chg.Add {
		sign = "+"
	}
	ch.broadcast(irc.Message{
		Prefix: sender.identifier(), Command: "MODE",
		Params: []string{ch.Name, sign + "o", target.Nick},
	})
}
