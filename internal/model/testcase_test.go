package model

import (
	"encoding/json"
	"testing"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    FlexString
		wantErr bool
	}{
		{`"High"`, "High", false},
		{`["step one", "step two"]`, "step one; step two", false},
		{`1`, "1", false},
		{`2.5`, "2.5", false},
		{`false`, "false", false},
		{`null`, "", false},
		{`{"level": 1}`, "", true},
	}

	for _, tt := range tests {
		var got FlexString
		err := json.Unmarshal([]byte(tt.input), &got)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s) expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
