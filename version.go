package basicauth

import (
	"github.com/blang/semver"
	"github.com/pkg/errors"
)

const (
	// Version is the current handshake protocol version
	Version = "1.0.0"
	// MinClientVersion is the oldest client the server still accepts
	MinClientVersion = "1.0.0"
)

var (
	serverVersion, minClientVersion semver.Version

	// errors
	errVersionIncorrect = errors.New("version incorrect")
)

func init() {
	serverVersion = semver.MustParse(Version)
	minClientVersion = semver.MustParse(MinClientVersion)
}

// checkVersionCompatible checks if the client's protocol is compatible
func checkVersionCompatible(clientVersion string) (bool, error) {
	v, err := semver.Make(clientVersion)
	if err != nil {
		return false, errVersionIncorrect
	}
	return v.GTE(minClientVersion) && v.LTE(serverVersion), nil
}
