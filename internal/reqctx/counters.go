package reqctx

import "sync/atomic"

// CounterType enumerates the operation counters the server tracks, in the
// style of common_utils.CounterType: a small closed enum with a String()
// method, backed by a flat array of atomic counters.
type CounterType int

const (
	GetValue CounterType = iota
	GetValueFail
	SetValue
	SetValueFail
	MultiSetValue
	MultiSetValueFail
	ExecuteCommand
	ExecuteCommandFail
	Connect
	ConnectFail
	counterSize
)

func (c CounterType) String() string {
	switch c {
	case GetValue:
		return "GetValue"
	case GetValueFail:
		return "GetValue failures"
	case SetValue:
		return "SetValue"
	case SetValueFail:
		return "SetValue failures"
	case MultiSetValue:
		return "MultiSetValue"
	case MultiSetValueFail:
		return "MultiSetValue failures"
	case ExecuteCommand:
		return "ExecuteCommand"
	case ExecuteCommandFail:
		return "ExecuteCommand failures"
	case Connect:
		return "Connect"
	case ConnectFail:
		return "Connect failures"
	default:
		return ""
	}
}

var globalCounters [counterSize]uint64

// IncCounter increments the named counter.
func IncCounter(c CounterType) {
	atomic.AddUint64(&globalCounters[c], 1)
}

// ReadCounter returns the current value of the named counter.
func ReadCounter(c CounterType) uint64 {
	return atomic.LoadUint64(&globalCounters[c])
}
