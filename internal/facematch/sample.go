package facematch

import (
	"path/filepath"
	"strconv"
	"strings"
)

// UnknownExternalID is used when a sample file name carries no external id.
const UnknownExternalID = "unknown"

// ParseSampleName splits an enrollment file name of the form
// "<externalID>_<index>.<ext>". A name without "_" has no external id; an
// index that is not a number is reported as -1.
func ParseSampleName(name string) (externalID string, index int) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	prefix, rest, ok := strings.Cut(base, "_")
	if !ok || prefix == "" {
		return UnknownExternalID, -1
	}

	n, err := strconv.Atoi(rest)
	if err != nil {
		return prefix, -1
	}
	return prefix, n
}

// SampleFileName is the inverse of ParseSampleName.
func SampleFileName(externalID string, index int) string {
	if externalID == "" {
		externalID = UnknownExternalID
	}
	return externalID + "_" + strconv.Itoa(index) + ".jpg"
}
