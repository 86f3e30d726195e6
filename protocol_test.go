package main

import "testing"

func TestIsValidNick(t *testing.T) {
	tests := []struct {
		nick string
		want bool
	}{
		{"alice", true},
		{"Alice_99", true},
		{"a-b`c^d", true},
		{"", false},
		{"has space", false},
		{"has#hash", false},
		{"日本語", false},
	}

	for _, test := range tests {
		if got := isValidNick(test.nick); got != test.want {
			t.Errorf("isValidNick(%q) = %v, want %v", test.nick, got, test.want)
		}
	}
}

func TestIsAlphanumeric(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"abc123", true},
		{"", false},
		{"abc-123", false},
		{"abc 123", false},
	}

	for _, test := range tests {
		if got := isAlphanumeric(test.s); got != test.want {
			t.Errorf("isAlphanumeric(%q) = %v, want %v", test.s, got, test.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"", 3, ""},
	}

	for _, test := range tests {
		if got := clamp(test.s, test.n); got != test.want {
			t.Errorf("clamp(%q, %d) = %q, want %q", test.s, test.n, got, test.want)
		}
	}
}

func TestDeconstructModes(t *testing.T) {
	tests := []struct {
		name       string
		table      map[byte]bool
		modeString string
		args       []string
		want       []modeChange
	}{
		{
			name:       "simple user modes",
			table:      userModes,
			modeString: "+iw",
			want: []modeChange{
				{Add: true, Mode: 'i'},
				{Add: true, Mode: 'w'},
			},
		},
		{
			name:       "mixed sign",
			table:      userModes,
			modeString: "+i-w",
			want: []modeChange{
				{Add: true, Mode: 'i'},
				{Add: false, Mode: 'w'},
			},
		},
		{
			name:       "no leading sign is rejected",
			table:      userModes,
			modeString: "iw",
			want:       nil,
		},
		{
			name:       "channel power mode consumes an argument",
			table:      powerModes,
			modeString: "+o",
			args:       []string{"bob"},
			want: []modeChange{
				{Add: true, Mode: 'o', Arg: "bob", HasArg: true},
			},
		},
		{
			name:       "missing argument drops the triple",
			table:      powerModes,
			modeString: "+o",
			want:       nil,
		},
		{
			name:       "unknown mode character is skipped",
			table:      userModes,
			modeString: "+z",
			want:       nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := deconstructModes(test.table, test.modeString, test.args)
			if len(got) != len(test.want) {
				t.Fatalf("deconstructModes() = %+v, want %+v", got, test.want)
			}
			for i := range got {
				if got[i] != test.want[i] {
					t.Errorf("deconstructModes()[%d] = %+v, want %+v", i, got[i], test.want[i])
				}
			}
		})
	}
}

func TestConstructModes(t *testing.T) {
	tests := []struct {
		set  map[byte]bool
		want string
	}{
		{map[byte]bool{}, "+"},
		{map[byte]bool{'i': true}, "+i"},
		{map[byte]bool{'i': true, 'w': true, 'x': true}, "+iwx"},
	}

	for _, test := range tests {
		if got := constructModes(test.set); got != test.want {
			t.Errorf("constructModes(%v) = %q, want %q", test.set, got, test.want)
		}
	}
}

func TestPowerSymbolFor(t *testing.T) {
	tests := []struct {
		set  map[byte]bool
		want string
	}{
		{map[byte]bool{}, ""},
		{map[byte]bool{'v': true}, "+"},
		{map[byte]bool{'v': true, 'o': true}, "@"},
		{map[byte]bool{'q': true, 'o': true}, "~"},
	}

	for _, test := range tests {
		if got := powerSymbolFor(test.set); got != test.want {
			t.Errorf("powerSymbolFor(%v) = %q, want %q", test.set, got, test.want)
		}
	}
}

func TestMaskHostname(t *testing.T) {
	tests := []struct {
		ip       string
		hostname string
		want     string
	}{
		{"192.168.1.5", "192.168.1.5", "192.168.x.x"},
		{"10.0.0.1", "host.example.org", "10.0.x.x"},
		{"::1", "localhost", "localhost"},
	}

	for _, test := range tests {
		if got := maskHostname(test.ip, test.hostname); got != test.want {
			t.Errorf("maskHostname(%q, %q) = %q, want %q", test.ip, test.hostname, got, test.want)
		}
	}
}
