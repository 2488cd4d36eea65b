package logger

import (
	"fmt"

	"github.com/sadlil/gologger"
)

var Log = gologger.GetLogger(gologger.CONSOLE, gologger.SimpleLog)

// SetLogger switches the process logger to a file when fileLog is set.
func SetLogger(fileLog string) {
	if fileLog != "" {
		Log = gologger.GetLogger(gologger.FILE, fileLog)
	}
	Log.Info("Start program")
}

func Infof(format string, args ...interface{}) {
	Log.Info(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	Log.Error(fmt.Sprintf(format, args...))
}
