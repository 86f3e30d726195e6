package main

import (
	"fmt"

	"github.com/horgh/irc"
)

// This file implements every numeric reply named in §4.B, each as a typed
// method rather than a dynamically-keyed template dictionary (§9). Every
// method assumes the caller already holds server.mu, since building a
// reply reads session state (nick, hostname, channel membership) that may
// be touched by another goroutine.

func (c *Client) fqdn() string { return c.server.Config.Server.FQDN }

func (c *Client) reply(code string, params ...string) {
	full := append([]string{c.displayNick()}, params...)
	c.send(irc.Message{Prefix: c.fqdn(), Command: code, Params: full})
}

// 221 RPL_UMODEIS
func (c *Client) numUserModes() {
	c.reply("221", constructModes(c.Modes))
}

// 232 RPL_RULES (one line per line of the rules file)
func (c *Client) numRules() {
	for _, line := range splitLines(c.server.Config.Rules.Content) {
		c.reply("232", "- "+line)
	}
}

// 251 RPL_LUSERCLIENT
func (c *Client) numLusersTotal() {
	c.reply("251", fmt.Sprintf("There are %d users on 1 server", len(c.server.clients)))
}

// 255 RPL_LUSERME
func (c *Client) numLusersLocalTotal() {
	c.reply("255", fmt.Sprintf("I have %d users", len(c.server.clients)))
}

// 265 RPL_LOCALUSERS
func (c *Client) numLusersLocalUsers() {
	c.reply("265", fmt.Sprintf("Current local users %d, max %d", len(c.server.clients), c.server.maxClients))
}

// 266 RPL_GLOBALUSERS
func (c *Client) numLusersGlobalUsers() {
	c.reply("266", fmt.Sprintf("Current global users %d, max %d", len(c.server.clients), c.server.maxClients))
}

// 302 RPL_USERHOST
func (c *Client) numUserhost(hosts []string) {
	c.reply("302", joinSpace(hosts))
}

// 303 RPL_ISON
func (c *Client) numIson(nicks []string) {
	c.reply("303", joinSpace(nicks))
}

// 308 a non-standard "rules start" numeric, matching the original source.
func (c *Client) numRulesStart() {
	c.reply("308", fmt.Sprintf("- %s Server Rules", c.server.Config.Server.Name))
}

// 309 end of RULES
func (c *Client) numRulesEnd() {
	c.reply("309", "End of /RULES command.")
}

// 311 RPL_WHOISUSER
func (c *Client) numWhoisUser(target *Client) {
	c.reply("311", target.Nick, target.User, target.currentHostname(), "*", target.RealName)
}

// 312 RPL_WHOISSERVER
func (c *Client) numWhoisServer(target *Client) {
	c.reply("312", target.Nick, c.fqdn(), c.server.Config.Server.Name)
}

// 317 RPL_WHOISIDLE
func (c *Client) numWhoisIdle(target *Client) {
	idle := int(c.server.clock.Now().Sub(target.lastCmd).Seconds())
	c.reply("317", target.Nick, fmt.Sprintf("%d", idle), fmt.Sprintf("%d", target.connected.Unix()),
		"seconds idle, signon time")
}

// 318 RPL_ENDOFWHOIS
func (c *Client) numEndOfWhois(nick string) {
	c.reply("318", nick, "End of /WHOIS list.")
}

// 319 RPL_WHOISCHANNELS
func (c *Client) numWhoisChannels(target *Client) {
	var names []string
	for name, powers := range target.Channels {
		sym := powerSymbolFor(powers)
		cased := name
		if ch, ok := c.server.channels[name]; ok {
			cased = ch.Name
		}
		names = append(names, sym+cased)
	}
	c.reply("319", target.Nick, joinSpace(names))
}

// 324 RPL_CHANNELMODEIS
func (c *Client) numChannelModes(ch *Channel) {
	if len(ch.Modes) == 0 {
		c.reply("324", ch.Name, "+")
		return
	}

	keys := "+"
	var values []string
	for k, v := range ch.Modes {
		keys += string(k)
		if v != "" {
			values = append(values, v)
		}
	}
	c.reply("324", append([]string{ch.Name, keys}, values...)...)
}

// 329 RPL_CREATIONTIME
func (c *Client) numChannelCreation(ch *Channel) {
	c.reply("329", ch.Name, fmt.Sprintf("%d", ch.Created.Unix()))
}

// 332 RPL_TOPIC
func (c *Client) numTopic(ch *Channel) {
	c.reply("332", ch.Name, ch.Topic.Content)
}

// 333 non-standard "topic set by/when" numeric, matching the original
// source's num_333_channel_topic_time.
func (c *Client) numTopicTime(ch *Channel) {
	c.reply("333", ch.Name, ch.Topic.Author, fmt.Sprintf("%d", ch.Topic.SetTime.Unix()))
}

// 353 RPL_NAMREPLY
func (c *Client) numNames(channelName string, names []string) {
	c.reply("353", "=", channelName, joinSpace(names))
}

// 366 RPL_ENDOFNAMES
func (c *Client) numEndOfNames(channelName string) {
	c.reply("366", channelName, "End of /NAMES list.")
}

// 372 RPL_MOTD (one line per line of the MOTD file, plus a header line with
// the file's modification time)
func (c *Client) numMOTD() {
	c.reply("372", "- "+c.server.Config.MOTD.Modified.Format("02/01/2006 15:04"))
	for _, line := range splitLines(c.server.Config.MOTD.Content) {
		c.reply("372", "- "+line)
	}
}

// 375 RPL_MOTDSTART
func (c *Client) numMOTDStart() {
	c.reply("375", fmt.Sprintf("- %s Message of the Day -", c.server.Config.Server.Name))
}

// 376 RPL_ENDOFMOTD
func (c *Client) numMOTDEnd() {
	c.reply("376", "End of /MOTD command.")
}

// 378 a non-standard WHOIS "connecting from" numeric, matching the
// original source's num_378_whois.
func (c *Client) numWhoisConnectingFrom(target *Client) {
	host := target.currentHostname()
	c.reply("378", target.Nick, fmt.Sprintf("is connecting from *@%s %s", host, host))
}

// 401 ERR_NOSUCHNICK
func (c *Client) numNoSuchNick(target string) {
	c.reply("401", target, "No such nick/channel")
}

// 403 ERR_NOSUCHCHANNEL
func (c *Client) numNoSuchChannel(target string) {
	c.reply("403", target, "No such channel")
}

// 410 non-standard "invalid CAP subcommand" numeric.
func (c *Client) numInvalidCapSubcommand(sub string) {
	c.reply("410", sub, "Invalid CAP subcommand")
}

// 411 ERR_NORECIPIENT
func (c *Client) numNoRecipient(command string) {
	c.reply("411", fmt.Sprintf("No recipient given (%s)", command))
}

// 412 ERR_NOTEXTTOSEND. The original source's template omitted the
// recipient nick on one code path; we always include it per the general
// numeric grammar (§9).
func (c *Client) numNoTextToSend() {
	c.reply("412", "No text to send")
}

// 421 ERR_UNKNOWNCOMMAND
func (c *Client) numUnknownCommand(command string) {
	c.reply("421", command, "Unknown command")
}

// 431 ERR_NONICKNAMEGIVEN
func (c *Client) numNoNickGiven(command string) {
	c.send(irc.Message{Prefix: c.fqdn(), Command: "431", Params: []string{command, "No nickname given"}})
}

// 432 ERR_ERRONEUSNICKNAME / ERR_NICKNAMEINUSE (shared code per the
// original source)
func (c *Client) numNickInUse(nick string) {
	c.reply("432", nick, "Nickname is already in use")
}

func (c *Client) numErroneousNickname() {
	c.send(irc.Message{Prefix: c.fqdn(), Command: "432", Params: []string{"NICK", "Erroneous Nickname: Illegal Characters"}})
}

// 441 ERR_USERNOTINCHANNEL
func (c *Client) numUserNotInChannel(nick, channel string) {
	c.reply("441", nick, channel, "They aren't on that channel")
}

// 442 ERR_NOTONCHANNEL
func (c *Client) numNotOnChannel(channel string) {
	c.send(irc.Message{Prefix: c.fqdn(), Command: "442", Params: []string{channel, "You're not on that channel"}})
}

// 451 ERR_NOTREGISTERED
func (c *Client) numNotRegistered(command string) {
	c.send(irc.Message{Prefix: c.fqdn(), Command: "451", Params: []string{command, "You have not registered"}})
}

// 460 non-standard "halfops cannot set mode o" numeric.
func (c *Client) numHalfopsCannotSetOp() {
	c.reply("460", "Halfops cannot set mode o")
}

// 461 ERR_NEEDMOREPARAMS
func (c *Client) numNeedMoreParams(command string) {
	c.reply("461", command, "Not enough parameters")
}

// 462 ERR_ALREADYREGISTERED
func (c *Client) numAlreadyRegistered() {
	c.reply("462", "USER", "You may not reregister")
}

// 482 ERR_CHANOPRIVSNEEDED
func (c *Client) numChanopPrivsNeeded(channel string) {
	c.reply("482", channel, "You're not a channel operator")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func joinSpace(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += " "
		}
		out += item
	}
	return out
}
