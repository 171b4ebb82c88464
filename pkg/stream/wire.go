package stream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// WireEncoder serializes orchestrator events into the client wire protocol:
// newline-terminated records of the form <tag>:<json>.
//
//	0:<json-string>  content append frame
//	e:{"finishReason":...,"usage":{...}}  terminal frame, exactly one, last
//
// Once a write to the sink fails, every subsequent emission becomes a no-op:
// a closed client connection tears the pipeline down without surfacing
// transport errors into the streaming loop.
type WireEncoder struct {
	w        io.Writer
	err      error
	finished bool
}

// finishPayload is the JSON body of the terminal frame.
type finishPayload struct {
	FinishReason string    `json:"finishReason"`
	Usage        llm.Usage `json:"usage"`
}

// NewWireEncoder creates an encoder writing frames to w.
func NewWireEncoder(w io.Writer) *WireEncoder {
	return &WireEncoder{w: w}
}

// Content emits one content append frame. Empty text, a dead sink, or an
// already-finished stream all make this a no-op.
func (e *WireEncoder) Content(text string) {
	if text == "" || e.err != nil || e.finished {
		return
	}

	payload, err := json.Marshal(text)
	if err != nil {
		e.err = fmt.Errorf("encoding content frame: %w", err)
		return
	}
	e.write("0:", payload)
}

// Finish emits the terminal frame. Only the first call writes; the frame
// carries the finish reason and accumulated usage.
func (e *WireEncoder) Finish(reason string, usage llm.Usage) {
	if e.finished {
		return
	}
	e.finished = true

	if e.err != nil {
		return
	}

	payload, err := json.Marshal(finishPayload{FinishReason: reason, Usage: usage})
	if err != nil {
		e.err = fmt.Errorf("encoding finish frame: %w", err)
		return
	}
	e.write("e:", payload)
}

func (e *WireEncoder) write(tag string, payload []byte) {
	frame := make([]byte, 0, len(tag)+len(payload)+1)
	frame = append(frame, tag...)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	if _, err := e.w.Write(frame); err != nil {
		e.err = fmt.Errorf("writing %s frame: %w", tag, err)
	}
}

// Err reports the first sink failure, if any.
func (e *WireEncoder) Err() error {
	return e.err
}

// Finished reports whether the terminal frame has been emitted (or attempted).
func (e *WireEncoder) Finished() bool {
	return e.finished
}
