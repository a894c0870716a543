package util

import (
	"bytes"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"net"
)

// SendCtrl sends a single command line to the ctrl listener at path and returns everything it answered.
//
func SendCtrl(path, command string) (string, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return "", errors.Wrapf(err, "error resolving [%s]", path)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return "", errors.Wrapf(err, "error dialing [%s]", path)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte(fmt.Sprintf("%s\n", command))); err != nil {
		return "", errors.Wrap(err, "error sending command")
	}
	if err := conn.CloseWrite(); err != nil {
		return "", errors.Wrap(err, "error closing write side")
	}
	response := new(bytes.Buffer)
	if _, err := io.Copy(response, conn); err != nil {
		return "", errors.Wrap(err, "error reading response")
	}
	return response.String(), nil
}
