package user

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{" rider ", RoleRider, false},
		{"DISPATCHER", RoleDispatcher, false},
		{"admin", RoleAdmin, false},
		{"passenger", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseRole(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseRole(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanObserveOthers(t *testing.T) {
	if RoleRider.CanObserveOthers() {
		t.Fatalf("rider must not observe others")
	}
	if !RoleDispatcher.CanObserveOthers() || !RoleAdmin.CanObserveOthers() {
		t.Fatalf("dispatcher and admin must observe others")
	}
}
