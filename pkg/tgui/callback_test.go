package tgui

import "testing"

func TestDataSplitRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scope, action, payload string
	}{
		{"sched", "target", "DIRECT"},
		{"sched", "day", "MON"},
		{"sched", "done", ""},
		{"sched", "pick", "a:b:c"},
	}
	for _, tt := range tests {
		data := Data(tt.scope, tt.action, tt.payload)
		s, a, p := Split(data)
		if s != tt.scope || a != tt.action || p != tt.payload {
			t.Fatalf("Split(Data(%q,%q,%q)) = %q,%q,%q", tt.scope, tt.action, tt.payload, s, a, p)
		}
	}
}
