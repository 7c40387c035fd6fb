package simpleasset

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ImporterABI is the importer plugin ABI implemented by this host.
const ImporterABI = "1.0.0"

// CheckABI validates a plugin's declared ABI against the host: the major
// versions must match and the plugin may not require a newer minor.
func CheckABI(pluginABI string) error {
	host := semver.MustParse(ImporterABI)
	v, err := semver.NewVersion(pluginABI)
	if err != nil {
		return fmt.Errorf("invalid ABI version %q: %w", pluginABI, err)
	}
	if v.Major() != host.Major() {
		return fmt.Errorf("ABI %s has major %d, host supports %d", v, v.Major(), host.Major())
	}
	if v.Minor() > host.Minor() {
		return fmt.Errorf("ABI %s requires a newer host than %s", v, host)
	}
	return nil
}
