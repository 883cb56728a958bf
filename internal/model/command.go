package model

import "github.com/device-model/server/internal/wire"

// sliceResponder is the common-case CommandResponder: a pre-computed list
// of responses replayed one at a time, used by command handlers that do
// not need to stream incrementally (spec §4.7 ExecuteCommand).
type sliceResponder struct {
	values []*wire.Value
	excs   []*CommandException
	i      int
}

// NewSliceResponder builds a CommandResponder that yields each value in
// order and then reports exhaustion.
func NewSliceResponder(values ...*wire.Value) CommandResponder {
	return &sliceResponder{values: values}
}

// NewFailingResponder builds a CommandResponder whose single response is
// a CommandException (spec §4.7: command failures are ordinary stream
// messages, not RPC aborts).
func NewFailingResponder(exc *CommandException) CommandResponder {
	return &sliceResponder{excs: []*CommandException{exc}}
}

func (r *sliceResponder) Next() (*wire.Value, *CommandException, bool) {
	if r.i < len(r.excs) {
		exc := r.excs[r.i]
		r.i++
		return nil, exc, true
	}
	if r.i-len(r.excs) < len(r.values) {
		v := r.values[r.i-len(r.excs)]
		r.i++
		return v, nil, true
	}
	return nil, nil, false
}

// respondFalseResponder is a CommandResponder that yields nothing. Nothing
// in this package returns it: ExecuteFireAndForget drains the handler's
// own responder instead.
type respondFalseResponder struct{}

func (respondFalseResponder) Next() (*wire.Value, *CommandException, bool) { return nil, nil, false }

// ExecuteFireAndForget runs the command handler but discards its
// responses, matching ExecuteCommand's respond=false contract: the
// handler still executes to completion so its side effects happen, but
// the RPC returns immediately without streaming results back.
func (p *Param) ExecuteFireAndForget(value *wire.Value) error {
	r, err := p.ExecuteCommand(value)
	if err != nil {
		return err
	}
	for {
		_, _, ok := r.Next()
		if !ok {
			break
		}
	}
	return nil
}
