// Package buildinfo carries build-time metadata injected at startup.
// It is deliberately separate from user configuration: nothing here is
// editable, and nothing here is re-read at runtime.
package buildinfo

// UnknownValue stands in for metadata the build did not inject.
const UnknownValue = "unknown"

// BuildInfo is the read surface commands and the support bundle use.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetSystemID() string
}

// Context holds the injected metadata. Version and BuildDate come from
// ldflags; SystemID is minted once per installation.
type Context struct {
	Version   string
	BuildDate string
	SystemID  string
}

// NewContext builds a context from the injected values.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

// GetVersion returns the build version, or UnknownValue when the binary
// was built without injection (go run, tests).
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build timestamp string.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetSystemID returns the installation identifier.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}
