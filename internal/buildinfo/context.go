// Package buildinfo holds build-time metadata injected through -ldflags.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable
type Context struct {
	Version   string
	BuildDate string
}

// NewContext creates a build context
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version tag or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String renders version and build date for --version output
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
