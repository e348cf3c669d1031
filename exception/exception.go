package exception

import (
	"fmt"
	"runtime"

	log "github.com/ssviatko/dhmrsa/glog"
)

// injectable
var DEBUG bool

// Exception is a lightweight error carrying a fixed message and an
// optional machine-checkable kind, so callers can map it back to the
// taxonomy string without string matching.
type Exception struct {
	msg  string
	kind string
}

func (e *Exception) Error() string {
	return e.msg
}

func (e *Exception) Kind() string {
	return e.kind
}

func (e *Exception) Apply(appendage interface{}) *Exception {
	newE := new(Exception)
	newE.msg = fmt.Sprintf("%s %v", e.msg, appendage)
	newE.kind = e.kind
	return newE
}

// Is lets errors.Is(err, exception.New("...")) match on kind rather
// than pointer identity, since Apply() clones.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	if !ok || e.kind == "" {
		return false
	}
	return e.kind == t.kind
}

// New creates a plain Exception. The message doubles as its kind tag.
func New(msg string) *Exception {
	return &Exception{msg: msg, kind: msg}
}

// NewW creates an Exception the "warning" way some of the older call
// sites expect; behaviorally identical to New.
func NewW(msg string) *Exception {
	return New(msg)
}

func Detail(err error) string {
	if err != nil && (log.V(1) == true || DEBUG) {
		return fmt.Sprintf("(Error:%T::%s)", err, err)
	}
	return ""
}

// if ( [re] != nil OR [err] !=nil ) then return true
// and set [err] to [re] if [re] != nil
func Catch(re interface{}, err *error) bool {
	var ex error
	if re != nil {
		switch rex := re.(type) {
		case error:
			ex = rex
		default:
			ex = fmt.Errorf("%v", re)
		}
		// print recovered error
		if DEBUG || bool(log.V(1)) {
			buf := make([]byte, 1600)
			n := runtime.Stack(buf, false)
			errStack := ex.Error() + "\n"
			errStack += string(buf[:n])
			log.DirectPrintln(errStack)
		}
	}
	if ex != nil {
		if err != nil {
			*err = ex
		}
		return true
	}
	return err != nil && *err != nil
}

func Spawn(ePtr *error, format string, args ...interface{}) error {
	var err error
	if err = *ePtr; err == nil {
		return nil
	}
	var e Exception
	e.msg = fmt.Sprintf(format, args...)
	if log.V(1) {
		e.msg += " " + err.Error()
	}
	*ePtr = &e
	return &e
}

// ThrowErr panics with err if non-nil, for the fatal-at-utility-layer
// call sites (CLI commands) that want a single recover() at the top.
func ThrowErr(err error) {
	if err != nil {
		panic(err)
	}
}

// ThrowIf panics with ex if cond is true.
func ThrowIf(cond bool, ex error) {
	if cond {
		panic(ex)
	}
}
