// Package logging hands out component loggers backed by one logrus instance.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	// Library code stays quiet until a binary calls Configure.
	l.SetOutput(io.Discard)
	return l
}

// For returns a logger tagged with the given component name.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Configure sets the destination and verbosity for every component logger.
func Configure(w io.Writer, verbose bool) {
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}
