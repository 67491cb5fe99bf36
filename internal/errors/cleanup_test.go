package errors

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		closeErr   error
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: errors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				mc := tt.closer.(*mockCloser)
				if !mc.closed {
					t.Error("Close() was not called")
				}
			}

			logged := buf.Len() > 0
			if logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v", logged, tt.wantLogged)
			}
		})
	}
}

func TestCloseInto(t *testing.T) {
	t.Run("keeps nil error on successful close", func(t *testing.T) {
		var err error
		mc := &mockCloser{}
		CloseInto(mc, &err, "close binary")
		if !mc.closed {
			t.Error("Close() was not called")
		}
		if err != nil {
			t.Errorf("err = %v, want nil", err)
		}
	})

	t.Run("records close error", func(t *testing.T) {
		var err error
		closeErr := errors.New("close failed")
		CloseInto(&mockCloser{closeErr: closeErr}, &err, "close binary")
		if !errors.Is(err, closeErr) {
			t.Errorf("err = %v, want wrapped %v", err, closeErr)
		}
	})

	t.Run("does not replace earlier error", func(t *testing.T) {
		earlier := errors.New("read failed")
		err := earlier
		CloseInto(&mockCloser{closeErr: errors.New("close failed")}, &err, "close binary")
		if err != earlier {
			t.Errorf("err = %v, want %v", err, earlier)
		}
	})

	t.Run("nil closer", func(t *testing.T) {
		var err error
		CloseInto(nil, &err, "close binary")
		if err != nil {
			t.Errorf("err = %v, want nil", err)
		}
	})
}
