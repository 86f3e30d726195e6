package main

import "strings"

// validNickChars are the characters permitted in a nickname, beyond ASCII
// letters and digits.
const validNickChars = "-_\\[]{}^`"

// maxNickLength is the maximum length a nick is clamped to. The original
// source tried to slice the argument list rather than the nick string; we
// just clamp the string.
const maxNickLength = 30

// maxIdentLength is the clamp applied to USER's username and realname
// fields, for the same reason as maxNickLength.
const maxIdentLength = 30

// maxChannelLength is the RFC 2812 channel name length limit.
const maxChannelLength = 50

// userModes is the set of client (self) modes we support. None take an
// argument.
var userModes = map[byte]bool{
	'i': true,
	'w': true,
	'x': true,
}

// powerModes is the set of per-channel power modes. Every one of them takes
// exactly one argument (a target nick).
var powerModes = map[byte]bool{
	'q': true,
	'a': true,
	'o': true,
	'h': true,
	'v': true,
}

// powerOrder lists the power modes from highest to lowest precedence. It is
// the order powerSymbolFor walks when picking the symbol to show for a
// member (NAMES and WHOIS channel lists).
var powerOrder = []byte{'q', 'a', 'o', 'h', 'v'}

// powerSymbols maps a power mode to its display prefix.
var powerSymbols = map[byte]string{
	'q': "~",
	'a': "&",
	'o': "@",
	'h': "%",
	'v': "+",
}

// isValidNick reports whether n is a legal, non-empty nickname.
func isValidNick(n string) bool {
	if len(n) == 0 {
		return false
	}

	for i := 0; i < len(n); i++ {
		c := n[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case strings.IndexByte(validNickChars, c) != -1:
		default:
			return false
		}
	}

	return true
}

// isAlphanumeric reports whether s consists only of ASCII letters and
// digits. The USER command rejects anything else as a "hostile username."
func isAlphanumeric(s string) bool {
	if len(s) == 0 {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}

// clamp truncates s to at most n bytes.
func clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// modeChange is one (sign, mode character, optional argument) triple
// produced by deconstructing a mode string. This is the typed replacement
// for the source's dynamically-keyed dictionaries.
type modeChange struct {
	Add  bool
	Mode byte
	Arg  string
	// HasArg distinguishes "no argument was supplied" from "the argument is
	// the empty string" -- the grammar never actually produces the latter,
	// but we keep it explicit rather than overloading Arg == "".
	HasArg bool
}

// deconstructModes parses a sign-prefixed mode string such as "+oo-v"
// against a table of known modes and a flat list of positional arguments.
//
// The first character of modeString must be '+' or '-'; if it isn't, the
// whole parse is rejected and returns nil. This resolves an ambiguity in
// the original implementation, which appeared to allow a bare leading mode
// character in some circumstances -- we don't.
//
// Unknown mode characters are silently skipped. If a mode requires an
// argument and none remain, that triple is omitted (not an error).
func deconstructModes(table map[byte]bool, modeString string, args []string) []modeChange {
	if len(modeString) == 0 {
		return nil
	}
	if modeString[0] != '+' && modeString[0] != '-' {
		return nil
	}

	var out []modeChange
	add := true
	argIndex := 0

	for i := 0; i < len(modeString); i++ {
		c := modeString[i]

		if c == '+' || c == '-' {
			add = c == '+'
			continue
		}

		if !table[c] {
			continue
		}

		// Every mode in our tables takes either 0 or 1 argument. Channel power
		// modes take exactly 1; user modes take 0.
		if table == powerModes {
			if argIndex >= len(args) {
				continue
			}
			out = append(out, modeChange{Add: add, Mode: c, Arg: args[argIndex], HasArg: true})
			argIndex++
			continue
		}

		out = append(out, modeChange{Add: add, Mode: c})
	}

	return out
}

// constructModes renders the currently-set flags in set as a single "+xyz"
// style string.
func constructModes(set map[byte]bool) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, m := range []byte{'i', 'w', 'x'} {
		if set[m] {
			b.WriteByte(m)
		}
	}
	return b.String()
}

// powerSymbolFor returns the display prefix for the highest-precedence
// power mode present in set, or "" if the set is empty.
func powerSymbolFor(set map[byte]bool) string {
	for _, m := range powerOrder {
		if set[m] {
			return powerSymbols[m]
		}
	}
	return ""
}

// maskHostname computes the "masked" hostname shown to clients with user
// mode +x set. For a dotted-quad IPv4 address it is the first two octets
// followed by ".x.x"; otherwise the hostname passes through unchanged.
func maskHostname(ip, hostname string) string {
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".x.x"
	}
	return hostname
}
