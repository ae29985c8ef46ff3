// Package version reports the build version of snapstream.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/snapstream/version.Version=1.2.0" ./cmd/snapstream
//
// Values left empty are filled from the module build info when the binary
// was built from a VCS checkout.
package version
