package pcloud

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
)

// resultEnvelope is decoded from every JSON response before anything else.
// encoding/json's default behavior already ignores fields it doesn't know
// about, which is exactly the tolerant decoding spec §6 requires — no
// DisallowUnknownFields, ever, on any response type in this package.
type resultEnvelope struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// resultCode conventions from spec §6.
const (
	resultSuccess           = 0
	resultInvalidCredential = 2000
	resultDirNotExist       = 2005
	resultDirExists         = 2004
)

// decodeEnvelope extracts the result code and maps a non-zero code to a
// typed RemoteApplicationError. On success it returns nil so the caller can
// proceed to unmarshal body into its specific response type.
func decodeEnvelope(body []byte) error {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return pcerr.NewIntegrityError("malformed response body", err)
	}
	if env.Result == resultSuccess {
		return nil
	}

	msg := env.Error
	if msg == "" {
		msg = fmt.Sprintf("remote returned result code %d", env.Result)
	}
	return pcerr.NewRemoteApplicationError(msg, env.Result, nil)
}

// decodeInto decodes body into v after checking the envelope, tolerating any
// field in v's JSON tags not present in body and vice versa.
func decodeInto(body []byte, v interface{}) error {
	if err := decodeEnvelope(body); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return pcerr.NewIntegrityError("malformed response body", err)
	}
	return nil
}

// IsNotFound reports whether err is the remote's "directory does not exist"
// application error.
func IsNotFound(err error) bool {
	return resultCodeOf(err) == resultDirNotExist
}

// IsAlreadyExists reports whether err is the remote's "directory already
// exists" application error.
func IsAlreadyExists(err error) bool {
	return resultCodeOf(err) == resultDirExists
}

// IsInvalidCredentials reports whether err is the remote's authentication
// failure.
func IsInvalidCredentials(err error) bool {
	return resultCodeOf(err) == resultInvalidCredential
}

func resultCodeOf(err error) int {
	var pe *pcerr.PulseError
	if !errors.As(err, &pe) || pe.Type != pcerr.RemoteApplicationError {
		return -1
	}
	code, _ := pe.Context["result_code"].(int)
	return code
}
