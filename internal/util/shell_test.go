package util

import "testing"

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"$(command)", "'$(command)'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ShellQuote(tt.input); got != tt.expected {
				t.Errorf("ShellQuote(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestProgram(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"/usr/local/bin/crmon-helper get-cluster-events", "/usr/local/bin/crmon-helper"},
		{"  crm_mon   --as-xml", "crm_mon"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := Program(tt.command); got != tt.want {
			t.Errorf("Program(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestLookupCommand(t *testing.T) {
	want := "command -v '/opt/my helper'"
	if got := LookupCommand("/opt/my helper"); got != want {
		t.Errorf("LookupCommand() = %q, want %q", got, want)
	}
}
