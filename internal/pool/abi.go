package pool

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the runtime library's own ABI version. spec.md §6 states the
// ABI surface (construct/destroy/insert/get/remove/drain/iterate, handle
// validation, fault reporting) "is stable per-major-version" — emitted
// programs link against whichever build of this package matches their
// compiler's expected major version.
const Version = "1.0.0"

// CheckABI parses requested (the ABI version an emitted program's front
// end was compiled against) and reports whether it is compatible with the
// runtime's own Version, following the teacher's semver-gated compatibility
// checks (internal/packagemanager/resolver.go, cmd/orizon/pkg/commands/
// outdated.go use the same Masterminds/semver/v3 constraint style to gate
// dependency versions).
func CheckABI(requested string) error {
	reqVer, err := semver.NewVersion(requested)
	if err != nil {
		return fmt.Errorf("pool: invalid ABI version %q: %w", requested, err)
	}

	runtimeVer := semver.MustParse(Version)

	constraint, err := semver.NewConstraint(fmt.Sprintf("^%d.0.0", runtimeVer.Major()))
	if err != nil {
		return fmt.Errorf("pool: internal ABI constraint error: %w", err)
	}

	if !constraint.Check(reqVer) {
		return fmt.Errorf("pool: ABI mismatch: runtime is v%s, front end requested v%s (major versions must match)",
			runtimeVer.String(), reqVer.String())
	}

	return nil
}
