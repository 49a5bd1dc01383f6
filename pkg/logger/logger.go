// Package logger provides the colored, leveled logging used throughout the
// sender and receiver CLIs. It keeps the same level set and terminal
// texture the teacher's hand-rolled logger had, but is now a thin wrapper
// around logrus with a custom formatter, since logrus is the one logging
// library this retrieval pack imports directly (see SPEC_FULL.md section 10).
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log levels, preserved from the teacher's logger for API compatibility
// with the rest of this repository and its tests.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

// ANSI color codes used by the Success level (logrus has no built-in
// concept of "success") and by the banner/section helpers below.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[37m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

var base = logrus.New()

func init() {
	base.SetFormatter(&colorFormatter{})
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(os.Stdout)
}

// colorFormatter renders log lines the way the teacher's formatMessage did:
// "[HH:MM:SS] COLOR[LEVEL]RESET message".
type colorFormatter struct{}

func (f *colorFormatter) Format(e *logrus.Entry) ([]byte, error) {
	color := levelColor(e.Level, e.Data["success"] == true)
	prefix := levelPrefix(e.Level, e.Data["success"] == true)
	line := fmt.Sprintf("[%s] %s[%s]%s %s\n",
		e.Time.Format("15:04:05"), color, prefix, ColorReset, e.Message)
	return []byte(line), nil
}

func levelColor(level logrus.Level, success bool) string {
	switch {
	case success:
		return ColorGreen
	case level == logrus.DebugLevel:
		return ColorGray
	case level == logrus.InfoLevel:
		return ColorWhite
	case level == logrus.WarnLevel:
		return ColorYellow
	default:
		return ColorRed
	}
}

func levelPrefix(level logrus.Level, success bool) string {
	switch {
	case success:
		return "SUCCESS"
	case level == logrus.DebugLevel:
		return "DEBUG"
	case level == logrus.InfoLevel:
		return "INFO"
	case level == logrus.WarnLevel:
		return "WARN"
	case level == logrus.FatalLevel:
		return "FATAL"
	default:
		return "ERROR"
	}
}

// SetLevel sets the minimum log level using the LevelDebug..LevelError
// constants above (LevelSuccess is not filterable; success lines always
// print at Info level or above).
func SetLevel(level int) {
	switch level {
	case LevelDebug:
		base.SetLevel(logrus.DebugLevel)
	case LevelInfo, LevelSuccess:
		base.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		base.SetLevel(logrus.WarnLevel)
	case LevelError:
		base.SetLevel(logrus.ErrorLevel)
	}
}

// SetLevelName sets the level from a config/flag string: "debug", "info",
// "warn", "error".
func SetLevelName(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return
	}
	base.SetLevel(lvl)
}

func Debug(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	base.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

// Success logs at Info level with the green "SUCCESS" tag.
func Success(format string, args ...interface{}) {
	base.WithField("success", true).Infof(format, args...)
}

// InfoCyan logs an info message rendered in cyan, for highlighting
// connection-level events (peer addresses, connection IDs).
func InfoCyan(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(base.Out, "[%s] %s[INFO]%s %s\n", time.Now().Format("15:04:05"), ColorCyan, ColorReset, msg)
}

// Fatal logs at Error level and exits the process with status 1, matching
// the teacher's Fatal helper.
func Fatal(format string, args ...interface{}) {
	base.Errorf(format, args...)
	os.Exit(1)
}

// Section prints a dividing header, used by the CLIs between setup and
// transfer phases.
func Section(title string) {
	fmt.Fprintf(base.Out, "\n%s--- %s ---%s\n", ColorCyan, title, ColorReset)
}

// Banner prints the startup banner for the sender/receiver CLIs.
func Banner(title, version string) {
	fmt.Fprintf(base.Out, "%s\n", ColorCyan)
	fmt.Fprintln(base.Out, "  ____      _ _       _     _      _____                     __           ")
	fmt.Fprintln(base.Out, " |  _ \\ ___| (_) __ _| |__ | | ___|_   _| __ __ _ _ __  ___  / _| ___ _ __ ")
	fmt.Fprintln(base.Out, " | |_) / _ \\ | |/ _` | '_ \\| |/ _ \\ | || '__/ _` | '_ \\/ __|| |_ / _ \\ '__|")
	fmt.Fprintln(base.Out, " |  _ <  __/ | | (_| | |_) | |  __/ | || | | (_| | | | \\__ \\|  _|  __/ |   ")
	fmt.Fprintln(base.Out, " |_| \\_\\___|_|_|\\__,_|_.__/|_|\\___| |_||_|  \\__,_|_| |_|___/|_|  \\___|_|   ")
	fmt.Fprintf(base.Out, "%s\n", ColorReset)
	fmt.Fprintf(base.Out, "  %s  v%s\n\n", title, version)
}
