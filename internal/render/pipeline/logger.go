package pipeline

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var logger atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetOutput(io.Discard)
	logger.Store(l)
}

// SetLogger routes pipeline diagnostics to l. Passing nil silences them.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
		l.SetOutput(io.Discard)
	}
	logger.Store(l)
}

// Logger returns the logger pipeline diagnostics go to.
func Logger() *logrus.Logger {
	return logger.Load()
}

func log() *logrus.Entry {
	return Logger().WithField("component", "pipeline")
}
