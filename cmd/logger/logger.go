/*
 * Minio Cloud Storage, (C) 2015, 2016, 2017, 2018 Minio, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"encoding/json"
	"fmt"
	"go/build"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/minio/mc/pkg/console"
)

// global colors.
var (
	colorBold   = color.New(color.Bold).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintfFunc()
	colorRed    = color.New(color.FgRed).SprintfFunc()
)

var trimStrings []string

// Level type
type Level int8

// Enumerated level types
const (
	Error Level = iota + 1
	Fatal
)

const loggerTimeFormat string = "15:04:05 MST 01/02/2006"

var matchingFuncNames = [...]string{
	"cmd.Sync",
	"cmd.(*SyncEngine).Run",
	// add more here ..
}

func (level Level) String() string {
	switch level {
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return ""
}

type traceEntry struct {
	Message string   `json:"message"`
	Source  []string `json:"source"`
}

// offsetInfo carries the sync-specific context a log line attaches,
// replacing the web-request/bucket/object fields the original logger
// filled from an HTTP request: this core has no request, only an
// offset and an optional disk index.
type offsetInfo struct {
	Offset int64 `json:"offset"`
	Disk   int   `json:"disk,omitempty"`
}

type logEntry struct {
	Level  string     `json:"level"`
	Time   string      `json:"time"`
	Offset offsetInfo `json:"offset,omitempty"`
	Cause  string     `json:"cause,omitempty"`
	Trace  traceEntry `json:"error"`
}

// quiet: Hide startup messages if enabled
// jsonFlag: Display in JSON format, if enabled
var (
	quiet, jsonFlag bool
)

// EnableQuiet - turns quiet option on.
func EnableQuiet() {
	quiet = true
}

// EnableJSON - outputs logs in json format.
func EnableJSON() {
	jsonFlag = true
	quiet = true
}

// Println - wrapper around console.Println with the quiet flag.
func Println(args ...interface{}) {
	if !quiet {
		console.Println(args...)
	}
}

// Printf - wrapper around console.Printf with the quiet flag.
func Printf(format string, args ...interface{}) {
	if !quiet {
		console.Printf(format, args...)
	}
}

// Init sets the trimStrings to possible GOPATHs and GOROOT
// directories, plus this module's own import path, so stack traces
// printed on Fatal/LogIf are readable without the full build path.
func Init(goPath string) {
	var goPathList []string
	var defaultgoPathList []string
	if runtime.GOOS == "windows" {
		goPathList = strings.Split(goPath, ";")
		defaultgoPathList = strings.Split(build.Default.GOPATH, ";")
	} else {
		goPathList = strings.Split(goPath, ":")
		defaultgoPathList = strings.Split(build.Default.GOPATH, ":")
	}

	trimStrings = []string{filepath.Join(runtime.GOROOT(), "src") + string(filepath.Separator)}

	for _, goPathString := range goPathList {
		trimStrings = append(trimStrings, filepath.Join(goPathString, "src")+string(filepath.Separator))
	}
	for _, defaultgoPathString := range defaultgoPathList {
		trimStrings = append(trimStrings, filepath.Join(defaultgoPathString, "src")+string(filepath.Separator))
	}

	trimStrings = append(trimStrings, filepath.Join("github.com", "minio", "parisync")+string(filepath.Separator))
}

func trimTrace(f string) string {
	for _, trimString := range trimStrings {
		f = strings.TrimPrefix(filepath.ToSlash(f), filepath.ToSlash(trimString))
	}
	return filepath.FromSlash(f)
}

// getTrace method - creates and returns stack trace
func getTrace(traceLevel int) []string {
	var trace []string
	pc, file, lineNumber, ok := runtime.Caller(traceLevel)

	for ok {
		file = trimTrace(file)
		_, funcName := filepath.Split(runtime.FuncForPC(pc).Name())
		if !strings.HasPrefix(file, "<autogenerated>") &&
			!strings.HasPrefix(funcName, "runtime.") {
			trace = append(trace, fmt.Sprintf("%v:%v:%v()", file, lineNumber, funcName))

			for _, name := range matchingFuncNames {
				if funcName == name {
					return trace
				}
			}
		}
		traceLevel++
		pc, file, lineNumber, ok = runtime.Caller(traceLevel)
	}
	return trace
}

func logIf(level Level, err error, offset int64, disk int) {
	if err == nil {
		return
	}
	cause := err.Error()
	trace := getTrace(3)
	timeOfError := time.Now().UTC().Format(time.RFC3339Nano)

	var output string
	if jsonFlag {
		logJSON, merr := json.Marshal(&logEntry{
			Level:  level.String(),
			Time:   timeOfError,
			Offset: offsetInfo{Offset: offset, Disk: disk},
			Cause:  cause,
			Trace:  traceEntry{Source: trace},
		})
		if merr != nil {
			panic("json marshal of logEntry failed: " + merr.Error())
		}
		output = string(logJSON)
	} else {
		if len(trace) > 0 {
			trace[0] = "1: " + trace[0]
			for i, element := range trace[1:] {
				trace[i+1] = fmt.Sprintf("%8v: %s", i+2, element)
			}
		}
		errMsg := fmt.Sprintf("[%s] [%s] offset=%d disk=%d (%s)",
			timeOfError, level.String(), offset, disk, cause)

		output = fmt.Sprintf("\nTrace: %s\n%s",
			strings.Join(trace, "\n"),
			colorRed(colorBold(errMsg)))
	}
	fmt.Println(output)

	if level == Fatal {
		os.Exit(1)
	}
}

// FatalIf logs err as Fatal and exits the process if err != nil. Used
// at unrecoverable sync preconditions (spec.md §7 Fatal).
func FatalIf(err error, offset int64, disk int) {
	logIf(Fatal, err, offset, disk)
}

// LogIf logs err as a non-fatal Error with its offset/disk context,
// used for the IoTransient/Concurrent/SilentData classes spec.md §7
// describes as continuing with the next offset.
func LogIf(err error, offset int64, disk int) {
	logIf(Error, err, offset, disk)
}

// Warn prints a quiet-mode-aware yellow warning line, used for
// Concurrent-modification diagnostics (spec.md §7: "tell user to
// re-sync").
func Warn(format string, args ...interface{}) {
	if !quiet {
		fmt.Println(colorYellow(format, args...))
	}
}
