// Package version carries the release version stamped into outbound User-Agent headers.
package version

// Current is the release version, without a leading "v".
const Current = "0.1.0"

// UserAgent is sent on every outbound API call.
func UserAgent() string {
	return "leadfinder/" + Current
}
