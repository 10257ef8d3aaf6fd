package pathsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// SpaceCheck selects when free space on the destination volume is verified.
type SpaceCheck int

const (
	// SpaceCheckNone never checks; copies fail with the OS error when the volume is full.
	SpaceCheckNone SpaceCheck = iota
	// SpaceCheckPass compares the whole source tree size with the free space once per
	// pass and aborts the pass before copying anything when it does not fit.
	SpaceCheckPass
	// SpaceCheckFile checks every file before copying it and skips the ones that do not fit.
	// Only new or changed files are checked, so an up-to-date file is never reported
	// as lacking space.
	SpaceCheckFile
	// SpaceCheckBoth runs both checks.
	SpaceCheckBoth
)

// DefaultSpaceCheck is the policy used when none is configured.
const DefaultSpaceCheck = SpaceCheckFile

var spaceCheckToString = map[SpaceCheck]string{
	SpaceCheckNone: "none",
	SpaceCheckPass: "pass",
	SpaceCheckFile: "file",
	SpaceCheckBoth: "both",
}

var stringToSpaceCheck map[string]SpaceCheck

func init() {
	stringToSpaceCheck = util.InvertMap(spaceCheckToString)
}

func (sc SpaceCheck) String() string {
	if str, ok := spaceCheckToString[sc]; ok {
		return str
	}
	return fmt.Sprintf("unknown_space_check(%d)", int(sc))
}

// PerPass reports whether the pass-level check is enabled.
func (sc SpaceCheck) PerPass() bool { return sc == SpaceCheckPass || sc == SpaceCheckBoth }

// PerFile reports whether the per-file check is enabled.
func (sc SpaceCheck) PerFile() bool { return sc == SpaceCheckFile || sc == SpaceCheckBoth }

// ParseSpaceCheck parses a policy name, case-insensitively.
func ParseSpaceCheck(s string) (SpaceCheck, error) {
	if sc, ok := stringToSpaceCheck[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sc, nil
	}
	return 0, fmt.Errorf("invalid space check: %q. Must be 'none', 'pass', 'file', or 'both'", s)
}

// MarshalText implements encoding.TextMarshaler, which viper and flag parsing rely on.
func (sc SpaceCheck) MarshalText() ([]byte, error) {
	return []byte(sc.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (sc *SpaceCheck) UnmarshalText(text []byte) error {
	parsed, err := ParseSpaceCheck(string(text))
	if err != nil {
		return err
	}
	*sc = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (sc SpaceCheck) MarshalJSON() ([]byte, error) {
	return json.Marshal(sc.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (sc *SpaceCheck) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("SpaceCheck should be a string, got %s", data)
	}
	return sc.UnmarshalText([]byte(s))
}
