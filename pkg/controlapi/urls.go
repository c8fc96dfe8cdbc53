package controlapi

import "fmt"

// Known environments. Any other string is accepted and substituted into the
// hostname as-is.
const (
	EnvironmentUS  = "us"
	EnvironmentEU  = "eu"
	EnvironmentDev = "dev"
)

// ResolveAPIBase returns the Studio API origin for an environment. The EU
// environment is served from the unprefixed host.
func ResolveAPIBase(environment string) string {
	if environment == EnvironmentEU {
		return "https://studio.monterosa.cloud"
	}
	return fmt.Sprintf("https://studio-%s.monterosa.cloud", environment)
}

// ResolveCDNBase returns the static CDN origin for an environment. Unlike the
// API host, EU keeps its region prefix here.
func ResolveCDNBase(environment string) string {
	return fmt.Sprintf("https://cdn-%s.monterosa.cloud", environment)
}
