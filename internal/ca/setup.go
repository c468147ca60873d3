package ca

import (
	"fmt"
	"runtime"
)

// ProxySetupInstructions returns the OS-appropriate shell commands for
// trusting this authority's root certificate, grounded on original
// apps/core/src/interceptor/mod.rs::proxy_setup_instructions.
func (a *Authority) ProxySetupInstructions(goos string) string {
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return fmt.Sprintf("sudo security add-trusted-cert -d -r trustRoot -k /Library/Keychains/System.keychain %q", a.certPath)
	case "windows":
		return fmt.Sprintf("certutil -addstore -f \"ROOT\" %q", a.certPath)
	default:
		return fmt.Sprintf(
			"sudo cp %q /usr/local/share/ca-certificates/echovault-interceptor-ca.crt && sudo update-ca-certificates",
			a.certPath,
		)
	}
}
