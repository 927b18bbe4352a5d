package main

import (
	"fmt"
	"os"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/logger"
)

// openedMessage is a read-only message loaded from a file.
type openedMessage struct {
	*capnp.Message
	path   string
	size   int64
	packed bool
	close  func() error
}

func (o *openedMessage) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// openMessage loads a single message. Unpacked files are memory-mapped;
// packed files are read and unpacked into memory.
func openMessage(path string, packed bool) (*openedMessage, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	o := &openedMessage{path: path, size: st.Size(), packed: packed}

	if !packed {
		mm, err := capnp.ReadFile(path, capnp.WithLogger(logger.L))
		if err != nil {
			return nil, err
		}
		o.Message = mm.Message
		o.close = mm.Close
		logger.Debug("message mapped", "path", path, "segments", mm.NumSegments())
		return o, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	msg, err := capnp.UnmarshalPacked(b, capnp.WithReadOnly(), capnp.WithLogger(logger.L))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	o.Message = msg
	logger.Debug("packed message loaded", "path", path, "segments", msg.NumSegments())
	return o, nil
}
