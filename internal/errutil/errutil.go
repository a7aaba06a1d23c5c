// Package errutil contains small helpers to simplify working with errors.
package errutil

import "io"

// Close closes c and, if err does not already point at an error, stores
// c.Close()'s result there. Meant to be used in a defer so a close
// failure isn't silently dropped when the main operation succeeded:
//
//	defer errutil.Close(f, &err)
func Close(c io.Closer, err *error) {
	closeErr := c.Close()
	if *err == nil && closeErr != nil {
		*err = closeErr
	}
}
