package cli

import (
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		args     []string
		wantMode string
		wantRest int
		wantErr  bool
	}{
		{[]string{"--mode=tracking-service", "--config=x.yaml"}, ModeTracking, 1, false},
		{[]string{"tracking", "--max-concurrent=5"}, ModeTracking, 1, false},
		{[]string{"--mode=m"}, ModeMigrate, 0, false},
		{[]string{"--config=x.yaml"}, "", 1, true},
		{[]string{"--mode=ride-service"}, "", 0, true},
	}
	for _, tc := range tests {
		mode, rest, err := ParseMode(tc.args)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%v: err = %v, wantErr %v", tc.args, err, tc.wantErr)
		}
		if mode != tc.wantMode || len(rest) != tc.wantRest {
			t.Fatalf("%v: got (%q, %v), want (%q, %d rest)", tc.args, mode, rest, tc.wantMode, tc.wantRest)
		}
	}
}

func TestGenerateUserToken(t *testing.T) {
	_, claims, err := GenerateUserToken("secret", "E1", "rider", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if claims.Subject != "E1" || claims.Role != "RIDER" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, _, err := GenerateUserToken("secret", "E1", "PASSENGER", time.Hour); err == nil {
		t.Fatalf("unknown role must fail")
	}
}
