package contracts

import (
	"encoding/json"
	"testing"
)

func TestWSInboundAcceptsBothEmployeeSpellings(t *testing.T) {
	tests := map[string]string{
		`{"type":"subscribe_tracking","employeeId":"E1"}`:                       "E1",
		`{"type":"subscribe_tracking","employee_id":"E2"}`:                      "E2",
		`{"type":"subscribe_tracking","employeeId":"E3","employee_id":"other"}`: "E3",
		`{"type":"unsubscribe_tracking"}`:                                       "",
	}
	for frame, want := range tests {
		var msg WSInbound
		if err := json.Unmarshal([]byte(frame), &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", frame, err)
		}
		if msg.EmployeeID != want {
			t.Fatalf("%s: employee = %q, want %q", frame, msg.EmployeeID, want)
		}
	}
	if err := json.Unmarshal([]byte(`{"type":1}`), &WSInbound{}); err == nil {
		t.Fatalf("expected error for non-string type")
	}
}
