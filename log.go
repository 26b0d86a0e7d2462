package macho

import (
	"os"

	"github.com/charmbracelet/log"
)

var defaultLogger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "macho",
	Level:  log.WarnLevel,
})

// SetDefaultLogger replaces the logger used by containers that were not given
// one with SetLogger. A nil logger restores the built-in one.
func SetDefaultLogger(l *log.Logger) {
	if l == nil {
		l = log.NewWithOptions(os.Stderr, log.Options{Prefix: "macho", Level: log.WarnLevel})
	}
	defaultLogger = l
}

// SetLogger sets the logger c reports cache and validation events to.
func (c *Container) SetLogger(l *log.Logger) { c.logger = l }

func (c *Container) log() *log.Logger {
	if c.logger != nil {
		return c.logger
	}
	return defaultLogger
}
