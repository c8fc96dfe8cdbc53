package controlapi

import "testing"

func TestResolveAPIBase(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"eu", "https://studio.monterosa.cloud"},
		{"us", "https://studio-us.monterosa.cloud"},
		{"dev", "https://studio-dev.monterosa.cloud"},
		{"staging-2", "https://studio-staging-2.monterosa.cloud"},
		{"", "https://studio-.monterosa.cloud"},
	}
	for _, tt := range tests {
		if got := ResolveAPIBase(tt.env); got != tt.want {
			t.Errorf("ResolveAPIBase(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestResolveCDNBase_KeepsRegionForEU(t *testing.T) {
	for _, env := range []string{"eu", "us", "dev", "anything"} {
		want := "https://cdn-" + env + ".monterosa.cloud"
		if got := ResolveCDNBase(env); got != want {
			t.Errorf("ResolveCDNBase(%q) = %q, want %q", env, got, want)
		}
	}
}
