package transcribe

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello there \n", "hello there"},
		{"[BLANK_AUDIO]", ""},
		{" [BLANK_AUDIO]\n[BLANK_AUDIO] ", ""},
		{"Hello (keyboard clicking) world", "Hello world"},
		{"[Music] play it again", "play it again"},
		{"[00:00:00.000 --> 00:00:02.000]   Turn left.", "Turn left."},
		{"Thank you.", ""},
		{"  you ", ""},
		{"...", ""},
		{"Thank you for the help.", "Thank you for the help."},
		{"line one\r\nline two", "line one line two"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
