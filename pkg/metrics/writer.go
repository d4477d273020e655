// Copyright 2019 Preferred Networks, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package metrics

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// StreamWriter is a Writer that appends one formatted record per session to a stream.
// Records are separated by a newline.
type StreamWriter struct {
	mu        sync.Mutex
	name      string
	out       io.Writer
	closer    io.Closer
	formatter Formatter
}

// NewStdoutWriter creates a new StreamWriter writing to stdout with the formatter.
func NewStdoutWriter(formatter Formatter) *StreamWriter {
	return &StreamWriter{
		name:      StdoutName,
		out:       os.Stdout,
		formatter: formatter,
	}
}

// NewFileWriter creates a new StreamWriter writing to a file created, or truncated, at the given
// path. Returns error if the file cannot be created.
func NewFileWriter(path string, formatter Formatter) (*StreamWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error creating metrics file %s", path)
	}

	return &StreamWriter{
		name:      file.Name(),
		out:       file,
		closer:    file,
		formatter: formatter,
	}, nil
}

// StdoutName is the Name of a StreamWriter writing to stdout.
const StdoutName = "stdout"

// Name returns the path of the underlying file, or StdoutName.
func (w *StreamWriter) Name() string { return w.name }

// Write implements Writer interface.
func (w *StreamWriter) Write(metrics *Metrics) error {
	record, err := w.formatter.Format(metrics)
	if err != nil {
		return errors.Wrap(err, "Error formatting metrics")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, record+"\n"); err != nil {
		return errors.Wrapf(err, "Error writing metrics to %s", w.name)
	}

	return nil
}

// Close closes the underlying file. Closing a StreamWriter writing to stdout does nothing.
func (w *StreamWriter) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

var _ = Writer(&StreamWriter{})
var _ = io.Closer(&StreamWriter{})
