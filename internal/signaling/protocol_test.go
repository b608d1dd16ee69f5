package signaling

import (
	"strings"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{
			name: "create-or-join",
			in:   `{"type":"create-or-join","room":"lobby"}`,
		},
		{
			name: "signal with payload",
			in:   `{"type":"message","payload":{"kind":"offer","sdp":"v=0"}}`,
		},
		{
			name: "bye",
			in:   `{"type":"bye"}`,
		},
		{
			name:    "create-or-join missing room",
			in:      `{"type":"create-or-join"}`,
			wantErr: "missing room",
		},
		{
			name:    "create-or-join with payload",
			in:      `{"type":"create-or-join","room":"lobby","payload":{}}`,
			wantErr: "unexpected fields",
		},
		{
			name:    "signal missing payload",
			in:      `{"type":"message"}`,
			wantErr: "missing payload",
		},
		{
			name:    "signal with room",
			in:      `{"type":"message","room":"lobby","payload":{}}`,
			wantErr: "unexpected fields",
		},
		{
			name:    "bye with room",
			in:      `{"type":"bye","room":"lobby"}`,
			wantErr: "unexpected fields",
		},
		{
			name:    "server-originated type",
			in:      `{"type":"channel-ready","room":"lobby"}`,
			wantErr: "server-originated",
		},
		{
			name:    "unknown type",
			in:      `{"type":"subscribe"}`,
			wantErr: "unknown message type",
		},
		{
			name:    "unknown field",
			in:      `{"type":"bye","extra":true}`,
			wantErr: "unknown field",
		},
		{
			name:    "trailing data",
			in:      `{"type":"bye"}{"type":"bye"}`,
			wantErr: "trailing data",
		},
		{
			name:    "not json",
			in:      `hello`,
			wantErr: "invalid character",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tc.in))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseMessage: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ParseMessage accepted %q as %+v", tc.in, msg)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseMessage_PayloadIsOpaque(t *testing.T) {
	in := `{"type":"message","payload":{"anything":[1,2,{"deep":true}]}}`
	msg, err := ParseMessage([]byte(in))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if string(msg.Payload) != `{"anything":[1,2,{"deep":true}]}` {
		t.Fatalf("payload=%s, not preserved verbatim", msg.Payload)
	}
}
