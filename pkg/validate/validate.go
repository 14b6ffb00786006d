package validate

import (
	"errors"
	"path"
	"regexp"
	"strings"
)

var (
	reDeviceName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	ErrBadName   = errors.New("invalid device name")
	ErrBadMount  = errors.New("invalid mount path")
)

// DeviceName checks names given to RAID arrays, volume groups and
// logical volumes: 1-32 characters from [A-Za-z0-9_-].
func DeviceName(s string) error {
	if !reDeviceName.MatchString(s) {
		return ErrBadName
	}
	return nil
}

// Mountpoint checks that p is an absolute, clean path.
func Mountpoint(p string) error {
	if !strings.HasPrefix(p, "/") {
		return ErrBadMount
	}
	if p != "/" && path.Clean(p) != p {
		return ErrBadMount
	}
	return nil
}
