package serialport

import (
	"io"
	"time"

	"github.com/geotdo/leicactl/internal/model"
)

// Stream is exported for tests which replace the serial device.
type Stream interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

func NewWithStream(cfg model.PortConfig, readTimeout time.Duration, open func() (Stream, error)) *Port {
	return newPort(cfg, readTimeout, func() (stream, error) {
		s, err := open()
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
