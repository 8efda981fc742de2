package constants

import "testing"

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		expected string
	}{
		{"xdg dir", "/home/u/.config", "/home/u/.config/sshrun/config.yaml"},
		{"trailing slash", "/home/u/.config/", "/home/u/.config/sshrun/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigPath(tt.dir)
			if got != tt.expected {
				t.Errorf("ConfigPath(%q) = %q, want %q", tt.dir, got, tt.expected)
			}
		})
	}
}

func TestKnownHostsPath(t *testing.T) {
	got := KnownHostsPath("/home/u")
	expected := "/home/u/.ssh/known_hosts"
	if got != expected {
		t.Errorf("KnownHostsPath() = %q, want %q", got, expected)
	}
}

func TestDefaults(t *testing.T) {
	if DefaultPort != 22 {
		t.Errorf("DefaultPort = %d, want 22", DefaultPort)
	}
	if DefaultConcurrency != 1 {
		t.Errorf("DefaultConcurrency = %d, want 1", DefaultConcurrency)
	}
	if DefaultReadTimeout != 0 {
		t.Errorf("DefaultReadTimeout = %v, want 0", DefaultReadTimeout)
	}
}
