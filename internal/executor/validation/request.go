// Package validation turns a raw /execute body into a validated request.
package validation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"execsvc/internal/executor/sandbox/spec"
	pkgerrors "execsvc/pkg/errors"
)

const (
	FieldExecutable = "executable"
	FieldCalldata   = "calldata"
	FieldTimeout    = "timeout"
)

const (
	msgMissing       = "field is missing from JSON request"
	msgNull          = "Field may not be null."
	msgNotString     = "Not a valid string."
	msgNotBase64     = "Not a valid base64 string."
	msgNotInteger    = "Not a valid integer."
	msgLongerThanFmt = "Longer than maximum length %d."
	msgRangeFmt      = "Must be greater than or equal to 0 and less than or equal to %d."
)

// Validator checks request bodies against the configured limits.
type Validator struct {
	limits spec.Limits
}

func New(limits spec.Limits) *Validator {
	return &Validator{limits: limits}
}

// MaxBodyBytes bounds the raw body a valid request can have.
func (v *Validator) MaxBodyBytes() int64 {
	encoded := int64(base64.StdEncoding.EncodedLen(int(v.limits.MaxExecutable)))
	// Calldata can arrive fully \u escaped.
	return encoded + 6*v.limits.MaxCalldata + 4096
}

// Parse validates body and reports every failing field at once.
func (v *Validator) Parse(body []byte) (spec.ExecutionRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return spec.ExecutionRequest{}, pkgerrors.InvalidJSON()
	}

	var (
		req     spec.ExecutionRequest
		invalid = pkgerrors.New(pkgerrors.ValidationFailed)
	)

	if raw, ok := present(fields, FieldExecutable, invalid); ok {
		if exe, msg := v.executable(raw); msg != "" {
			invalid.WithField(FieldExecutable, msg)
		} else {
			req.Executable = exe
		}
	}
	if raw, ok := present(fields, FieldCalldata, invalid); ok {
		if calldata, msg := v.calldata(raw); msg != "" {
			invalid.WithField(FieldCalldata, msg)
		} else {
			req.Calldata = calldata
		}
	}
	if raw, ok := present(fields, FieldTimeout, invalid); ok {
		if timeout, msg := v.timeout(raw); msg != "" {
			invalid.WithField(FieldTimeout, msg)
		} else {
			req.TimeoutMillis = timeout
		}
	}

	if invalid.HasFields() {
		return spec.ExecutionRequest{}, invalid
	}
	return req, nil
}

func present(fields map[string]json.RawMessage, name string, invalid *pkgerrors.Error) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok {
		invalid.WithField(name, msgMissing)
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		invalid.WithField(name, msgNull)
		return nil, false
	}
	return raw, true
}

func (v *Validator) executable(raw json.RawMessage) ([]byte, string) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, msgNotString
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, msgNotBase64
	}
	if int64(len(decoded)) > v.limits.MaxExecutable {
		return nil, fmt.Sprintf(msgLongerThanFmt, v.limits.MaxExecutable)
	}
	return decoded, ""
}

func (v *Validator) calldata(raw json.RawMessage) ([]byte, string) {
	var calldata string
	if err := json.Unmarshal(raw, &calldata); err != nil {
		return nil, msgNotString
	}
	if int64(len(calldata)) > v.limits.MaxCalldata {
		return nil, fmt.Sprintf(msgLongerThanFmt, v.limits.MaxCalldata)
	}
	return []byte(calldata), ""
}

// timeout accepts a JSON integer or a string holding one.
func (v *Validator) timeout(raw json.RawMessage) (int64, string) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, msgNotInteger
		}
		text = strings.TrimSpace(text)
	}
	outOfRange := fmt.Sprintf(msgRangeFmt, v.limits.MaxTimeoutMs)

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, outOfRange
		}
		return 0, msgNotInteger
	}
	if n < 0 || n > v.limits.MaxTimeoutMs {
		return 0, outOfRange
	}
	return n, ""
}
