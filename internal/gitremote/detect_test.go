package gitremote

import "testing"

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		raw       string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{"https://github.com/acme/widgets.git", "acme", "widgets", false},
		{"https://github.com/acme/widgets", "acme", "widgets", false},
		{"git@github.com:acme/widgets.git", "acme", "widgets", false},
		{"git@github.com:acme/widgets", "acme", "widgets", false},
		{"/local/path/to/repo", "", "", true},
		{"https://github.com/justowner", "", "", true},
	}
	for _, tt := range tests {
		owner, name, err := ParseRemoteURL(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRemoteURL(%q) expected error, got nil", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRemoteURL(%q) unexpected error: %v", tt.raw, err)
		}
		if owner != tt.wantOwner || name != tt.wantName {
			t.Errorf("ParseRemoteURL(%q) = (%q, %q), want (%q, %q)", tt.raw, owner, name, tt.wantOwner, tt.wantName)
		}
	}
}
