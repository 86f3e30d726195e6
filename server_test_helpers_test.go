package main

import (
	"net"
	"time"
)

// fakeConn is a minimal net.Conn that discards writes and never yields data
// on Read, enough to let newClient/Client.send be exercised without a real
// socket.
type fakeConn struct{}

func (fakeConn) Read(b []byte) (int, error)  { return 0, net.ErrClosed }
func (fakeConn) Write(b []byte) (int, error) { return len(b), nil }
func (fakeConn) Close() error                { return nil }
func (fakeConn) LocalAddr() net.Addr         { return fakeAddr{} }
func (fakeConn) RemoteAddr() net.Addr        { return fakeAddr{} }
func (fakeConn) SetDeadline(time.Time) error { return nil }
func (fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:0" }

// fixedClock is a Clock that never advances, for deterministic tests.
type fixedClockT time.Time

func fixedClock(t time.Time) Clock { return fixedClockT(t) }

func (f fixedClockT) Now() time.Time { return time.Time(f) }

func testConfig() *Config {
	cfg := &Config{}
	cfg.Bind.Address = "127.0.0.1"
	cfg.Bind.Port = 0
	cfg.Server.FQDN = "irc.test"
	cfg.Server.Name = "TestNet"
	cfg.Server.ClientLimit = 100
	cfg.Server.RecvBuffer = 4096
	cfg.MOTD = fileContent{Content: "welcome"}
	cfg.Rules = fileContent{Content: "be nice"}
	return cfg
}

func testLog() *Log {
	return &Log{debug: 0, file: discardWriter{}, stderr: discardWriter{}}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) Close() error                { return nil }
