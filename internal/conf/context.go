package conf

import (
	"sync"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

// Context carries the state shared by the cli commands of one invocation.
type Context struct {
	Settings   *Settings
	ConfigFile string // explicit config file, empty to search the default paths
	Version    string

	mu      sync.Mutex
	closers []func() error
}

// NewContext returns a Context holding empty settings. The settings are
// filled in place once the configuration is loaded.
func NewContext(version string) *Context {
	return &Context{Settings: &Settings{}, Version: version}
}

// OnClose registers fn to be called by Close.
func (c *Context) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close calls the registered functions in reverse order and joins their errors.
func (c *Context) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
