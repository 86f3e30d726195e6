package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise Channel directly, bypassing the network entirely.
// Members are built through newClient over a fake net.Conn, since
// newClient needs a net.Conn and Client.send needs the write queue it builds.
func makeMember(s *Server, addrKey, nick string) *Client {
	c := newClient(s, &fakeConn{})
	c.AddrKey = addrKey
	c.Nick = nick
	c.User = nick
	c.authorised = true
	return c
}

func TestChannelJoinGrantsOpToFirstMember(t *testing.T) {
	s := newServer(testConfig(), testLog(), fixedClock(time.Unix(0, 0)))
	ch := newChannel("#test", s.clock.Now())

	alice := makeMember(s, "1.2.3.4:1", "alice")
	ch.join(alice)

	powers := alice.Channels["#test"]
	require.NotNil(t, powers)
	assert.True(t, powers['o'], "first joiner should be granted op")
}

func TestChannelJoinSecondMemberGetsNoOp(t *testing.T) {
	s := newServer(testConfig(), testLog(), fixedClock(time.Unix(0, 0)))
	ch := newChannel("#test", s.clock.Now())

	alice := makeMember(s, "1.2.3.4:1", "alice")
	bob := makeMember(s, "1.2.3.4:2", "bob")

	ch.join(alice)
	ch.join(bob)

	assert.False(t, bob.Channels["#test"]['o'], "second joiner should not be op")
	assert.Len(t, ch.Members, 2)
}

func TestChannelPartEmptiesChannel(t *testing.T) {
	s := newServer(testConfig(), testLog(), fixedClock(time.Unix(0, 0)))
	ch := newChannel("#test", s.clock.Now())

	alice := makeMember(s, "1.2.3.4:1", "alice")
	ch.join(alice)

	destroyed := ch.part(alice, "bye")
	assert.True(t, destroyed)
	assert.Empty(t, ch.Members)
	assert.NotContains(t, alice.Channels, "#test")
}

func TestModeOGrantIsIdempotent(t *testing.T) {
	s := newServer(testConfig(), testLog(), fixedClock(time.Unix(0, 0)))
	ch := newChannel("#test", s.clock.Now())
	s.channels["#test"] = ch
	s.channelsCased["#test"] = "#test"

	alice := makeMember(s, "1.2.3.4:1", "alice")
	bob := makeMember(s, "1.2.3.4:2", "bob")
	ch.join(alice)
	ch.join(bob)
	s.nicks["alice"] = alice.AddrKey
	s.nicks["bob"] = bob.AddrKey

	ch.modeO(alice, modeChange{Add: true, Mode: 'o', Arg: "bob", HasArg: true})
	assert.True(t, bob.Channels["#test"]['o'])

	// Granting again should be a silent no-op, not a second broadcast.
	queued := len(alice.writeChan)
	ch.modeO(alice, modeChange{Add: true, Mode: 'o', Arg: "bob", HasArg: true})
	assert.True(t, bob.Channels["#test"]['o'])
	assert.Equal(t, queued, len(alice.writeChan), "second grant should not broadcast")
}

func TestModeORequiresOp(t *testing.T) {
	s := newServer(testConfig(), testLog(), fixedClock(time.Unix(0, 0)))
	ch := newChannel("#test", s.clock.Now())
	s.channels["#test"] = ch
	s.channelsCased["#test"] = "#test"

	alice := makeMember(s, "1.2.3.4:1", "alice")
	bob := makeMember(s, "1.2.3.4:2", "bob")
	ch.join(alice)
	ch.join(bob)
	s.nicks["alice"] = alice.AddrKey
	s.nicks["bob"] = bob.AddrKey

	// bob has no op; attempting to revoke alice's op should be rejected.
	ch.modeO(bob, modeChange{Add: false, Mode: 'o', Arg: "alice", HasArg: true})
	assert.True(t, alice.Channels["#test"]['o'], "alice keeps her original op")
}
