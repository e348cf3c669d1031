// Package glog is a small leveled logger in the style of Google's
// glog: a global verbosity threshold gated by V(n), plus Info/Warning/
// Error/Fatal/Exit severities. Unlike the stock glog it also supports
// redirecting output to a directory, which the CLI tools use for
// "--logdir".
package glog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

var verbosity int32

var std = log.New(os.Stderr, "", log.LstdFlags)

// V reports whether verbosity level n is currently enabled.
func V(n int) bool {
	return int32(n) <= atomic.LoadInt32(&verbosity)
}

// SetLogVerbose sets the global verbosity threshold.
func SetLogVerbose(n int) {
	atomic.StoreInt32(&verbosity, int32(n))
}

// SetLogOutput redirects subsequent log lines into a timestamped file
// under dir. An empty dir leaves output on stderr.
func SetLogOutput(dir string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		std.Printf("glog: cannot create logdir %s: %v", dir, err)
		return
	}
	name := filepath.Join(dir, time.Now().Format("20060102-150405")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		std.Printf("glog: cannot open logfile %s: %v", name, err)
		return
	}
	std.SetOutput(io.MultiWriter(os.Stderr, f))
}

func Infof(format string, args ...interface{})    { std.Output(2, "I "+fmt.Sprintf(format, args...)) }
func Infoln(args ...interface{})                  { std.Output(2, "I "+fmt.Sprintln(args...)) }
func Info(args ...interface{})                    { std.Output(2, "I "+fmt.Sprint(args...)) }
func Warningf(format string, args ...interface{}) { std.Output(2, "W "+fmt.Sprintf(format, args...)) }
func Warningln(args ...interface{})               { std.Output(2, "W "+fmt.Sprintln(args...)) }
func Errorf(format string, args ...interface{})   { std.Output(2, "E "+fmt.Sprintf(format, args...)) }
func Errorln(args ...interface{})                 { std.Output(2, "E "+fmt.Sprintln(args...)) }

func Fatalf(format string, args ...interface{}) {
	std.Output(2, "F "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

func Fatalln(args ...interface{}) {
	std.Output(2, "F "+fmt.Sprintln(args...))
	os.Exit(1)
}

// Exitln logs at Info severity and is used at clean-shutdown points;
// unlike Fatalln it does not terminate the process itself.
func Exitln(args ...interface{}) {
	std.Output(2, "I "+fmt.Sprintln(args...))
}

// DirectPrintln bypasses level prefixing, used for recovered panic
// stack traces where the caller has already formatted the text.
func DirectPrintln(s string) {
	fmt.Fprintln(os.Stderr, s)
}
