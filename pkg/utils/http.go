package utils

import "io"

// maxDrain bounds how much of an unread body is discarded before closing.
const maxDrain = 64 << 10

// DrainAndClose discards up to maxDrain bytes so the transport can reuse the
// connection, then closes rc.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.CopyN(io.Discard, rc, maxDrain)
	return rc.Close()
}
