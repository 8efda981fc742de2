package config

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		wantErr bool
	}{
		{"example.com", Target{Host: "example.com"}, false},
		{"root@example.com", Target{User: "root", Host: "example.com"}, false},
		{"root@example.com:2222", Target{User: "root", Host: "example.com", Port: 2222}, false},
		{"10.0.0.1:22", Target{Host: "10.0.0.1", Port: 22}, false},
		{"::1", Target{Host: "::1"}, false},
		{"deploy@[::1]:2200", Target{User: "deploy", Host: "::1", Port: 2200}, false},
		{"[2001:db8::1]", Target{Host: "2001:db8::1"}, false},
		{"", Target{}, true},
		{"@example.com", Target{}, true},
		{"Root@example.com", Target{}, true},
		{"root@", Target{}, true},
		{"example.com:0", Target{}, true},
		{"example.com:http", Target{}, true},
		{"example.com:70000", Target{}, true},
		{"host;id", Target{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveTarget(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.DefaultUser = "ops"
	cfg.Hosts["web"] = HostConfig{Host: "web.example.com", User: "www", Port: 2222}
	cfg.Hosts["bare"] = HostConfig{Host: "bare.example.com"}

	tests := []struct {
		spec string
		want Target
	}{
		{"web", Target{Alias: "web", User: "www", Host: "web.example.com", Port: 2222}},
		{"bare", Target{Alias: "bare", User: "ops", Host: "bare.example.com", Port: 22}},
		{"root@10.1.1.1", Target{User: "root", Host: "10.1.1.1", Port: 22}},
		{"10.1.1.1:2022", Target{User: "ops", Host: "10.1.1.1", Port: 2022}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := cfg.ResolveTarget(tt.spec)
			if err != nil {
				t.Fatalf("ResolveTarget(%q): %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("ResolveTarget(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}

	if _, err := cfg.ResolveTarget("bad target!"); err == nil {
		t.Error("expected an error for an invalid target")
	}
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{User: "root", Host: "example.com", Port: 22}, "root@example.com:22"},
		{Target{Host: "::1", Port: 2222}, "[::1]:2222"},
	}

	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
