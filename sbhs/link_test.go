package sbhs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type erroringPort struct {
	fakePort
	readErr  error
	closeErr error
}

func (p *erroringPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	return p.fakePort.Read(b)
}

func (p *erroringPort) Close() error {
	return p.closeErr
}

func openWith(t *testing.T, port Port) *Link {
	t.Helper()

	l, err := OpenLink("/dev/ttyUSB0", func(string, *serial.Mode) (Port, error) {
		return port, nil
	})
	require.NoError(t, err)
	return l
}

func TestLink_ReadBytes(t *testing.T) {
	port := newFakePort(nil)
	port.rx = []byte{1, 2, 3}
	l := openWith(t, port)

	p, err := l.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, p)

	_, err = l.ReadBytes(2)
	require.ErrorIs(t, err, ErrTimeout)

	_, err = l.ReadBytes(1)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestLink_ReadError(t *testing.T) {
	l := openWith(t, &erroringPort{readErr: errBroken})

	_, err := l.ReadBytes(1)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, errBroken)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestLink_FlushInput(t *testing.T) {
	port := newFakePort(nil)
	port.rx = []byte{1, 2, 3}
	l := openWith(t, port)

	l.FlushInput()
	require.Empty(t, port.rx)

	require.NoError(t, l.Close())
	l.FlushInput() // no-op once closed
	require.Equal(t, 1, port.resets)
}

func TestLink_Close(t *testing.T) {
	l := openWith(t, &erroringPort{closeErr: errBroken})

	err := l.Close()
	require.ErrorIs(t, err, ErrIO)
	require.False(t, l.IsOpen())
	require.NoError(t, l.Close())

	require.ErrorIs(t, l.WriteByte(1), ErrClosed)
	_, err = l.ReadBytes(1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpenLink_Failure(t *testing.T) {
	errDenied := errors.New("permission denied")

	_, err := OpenLink("/dev/ttyUSB0", func(string, *serial.Mode) (Port, error) {
		return nil, errDenied
	})
	require.ErrorIs(t, err, ErrConnect)
	require.ErrorContains(t, err, "/dev/ttyUSB0: permission denied")
}
