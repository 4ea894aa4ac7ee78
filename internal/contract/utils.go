package contract

import (
	"fmt"
	"os"

	"github.com/corpusci/corpusci/schema"
	"github.com/fatih/color"
)

// Color variables for console output.
var (
	FailColor  = color.New(color.FgRed, color.Bold)     // failColor represents a hard failure.
	UPassColor = color.New(color.FgMagenta, color.Bold) // upassColor flags a pass that was expected to fail.
	XFailColor = color.New(color.FgYellow)              // xfailColor represents a known, tracked failure.
	PassColor  = color.New(color.FgGreen)               // passColor represents success.
)

// GetColorLabel returns a colored text label for a result kind.
func GetColorLabel(kind schema.ResultKind) string {
	text := kind.String()
	switch kind {
	case schema.Fail:
		return FailColor.Sprint(text)
	case schema.UPass:
		return UPassColor.Sprint(text)
	case schema.XFail:
		return XFailColor.Sprint(text)
	default:
		return PassColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on
// the provided file path. An empty path selects stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning %s: %v\n", msg, err)
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "Warning %s\n", msg)
}
