package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	"execsvc/internal/executor/sandbox/spec"
	pkgerrors "execsvc/pkg/errors"
)

var testLimits = spec.Limits{
	MaxExecutable: 16,
	MaxCalldata:   8,
	MaxTimeoutMs:  5000,
	MaxStdout:     100,
	MaxStderr:     100,
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestParseValid(t *testing.T) {
	v := New(testLimits)
	cases := []struct {
		name    string
		body    string
		exe     string
		call    string
		timeout int64
	}{
		{
			name: "integer timeout",
			body: `{"executable":"` + b64("#!/bin/sh") + `","calldata":"abc","timeout":1000}`,
			exe:  "#!/bin/sh", call: "abc", timeout: 1000,
		},
		{
			name: "string timeout",
			body: `{"executable":"` + b64("x") + `","calldata":"","timeout":"3000"}`,
			exe:  "x", call: "", timeout: 3000,
		},
		{
			name: "empty executable",
			body: `{"executable":"","calldata":"bitcoin","timeout":0}`,
			exe:  "", call: "bitcoin", timeout: 0,
		},
		{
			name: "bounds inclusive",
			body: `{"executable":"` + b64(strings.Repeat("a", 16)) + `","calldata":"12345678","timeout":5000}`,
			exe:  strings.Repeat("a", 16), call: "12345678", timeout: 5000,
		},
		{
			name: "extra fields ignored",
			body: `{"executable":"","calldata":"","timeout":1,"other":true}`,
			timeout: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := v.Parse([]byte(tc.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(req.Executable) != tc.exe || string(req.Calldata) != tc.call || req.TimeoutMillis != tc.timeout {
				t.Fatalf("unexpected request: %+v", req)
			}
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	v := New(testLimits)
	for _, body := range []string{
		`{'executable': '123', 'calldata':}`,
		`[]`,
		`null`,
		`"text"`,
		``,
		`{"executable":"","calldata":"","timeout":1} trailing`,
	} {
		_, err := v.Parse([]byte(body))
		if pkgerrors.GetCode(err) != pkgerrors.InvalidFormat {
			t.Fatalf("body %q: expected InvalidFormat, got %v", body, err)
		}
		if err.Error() != "invalid JSON request format" {
			t.Fatalf("body %q: unexpected message %q", body, err.Error())
		}
	}
}

func TestParseFieldErrors(t *testing.T) {
	v := New(testLimits)
	rangeMsg := "Must be greater than or equal to 0 and less than or equal to 5000."
	cases := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"missing executable", `{"calldata":"bitcoin","timeout":2000}`, FieldExecutable, "field is missing from JSON request"},
		{"missing calldata", `{"executable":"","timeout":2000}`, FieldCalldata, "field is missing from JSON request"},
		{"missing timeout", `{"executable":"","calldata":""}`, FieldTimeout, "field is missing from JSON request"},
		{"null calldata", `{"executable":"","calldata":null,"timeout":1}`, FieldCalldata, "Field may not be null."},
		{"executable not string", `{"executable":123,"calldata":"","timeout":1}`, FieldExecutable, "Not a valid string."},
		{"executable not base64", `{"executable":"12!","calldata":"","timeout":1}`, FieldExecutable, "Not a valid base64 string."},
		{"executable too long", `{"executable":"` + b64(strings.Repeat("a", 17)) + `","calldata":"","timeout":1}`, FieldExecutable, "Longer than maximum length 16."},
		{"calldata not string", `{"executable":"","calldata":["a"],"timeout":1}`, FieldCalldata, "Not a valid string."},
		{"calldata too long", `{"executable":"","calldata":"123456789","timeout":1}`, FieldCalldata, "Longer than maximum length 8."},
		{"timeout garbage string", `{"executable":"","calldata":"","timeout":"faked timeout"}`, FieldTimeout, "Not a valid integer."},
		{"timeout float", `{"executable":"","calldata":"","timeout":1.5}`, FieldTimeout, "Not a valid integer."},
		{"timeout bool", `{"executable":"","calldata":"","timeout":true}`, FieldTimeout, "Not a valid integer."},
		{"timeout negative", `{"executable":"","calldata":"","timeout":-5}`, FieldTimeout, rangeMsg},
		{"timeout above max", `{"executable":"","calldata":"","timeout":5001}`, FieldTimeout, rangeMsg},
		{"timeout overflows int64", `{"executable":"","calldata":"","timeout":1111111111111111111111111111111111111111}`, FieldTimeout, rangeMsg},
		{"timeout string above max", `{"executable":"","calldata":"","timeout":"9000"}`, FieldTimeout, rangeMsg},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Parse([]byte(tc.body))
			if pkgerrors.GetCode(err) != pkgerrors.ValidationFailed {
				t.Fatalf("expected ValidationFailed, got %v", err)
			}
			if pkgerrors.GetCode(err).HTTPStatus() != 400 {
				t.Fatalf("validation errors must map to 400")
			}
			msgs := pkgerrors.GetError(err).Fields[tc.field]
			if len(msgs) != 1 || msgs[0] != tc.msg {
				t.Fatalf("field %s messages = %v, want [%s]", tc.field, msgs, tc.msg)
			}
		})
	}
}

func TestParseReportsAllFields(t *testing.T) {
	v := New(testLimits)
	_, err := v.Parse([]byte(`{"timeout":"x"}`))
	fields := pkgerrors.GetError(err).Fields
	if len(fields) != 3 {
		t.Fatalf("expected three failing fields, got %v", fields)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	v := New(testLimits)
	// 16 bytes encode to 24 base64 characters.
	if got, want := v.MaxBodyBytes(), int64(24+6*8+4096); got != want {
		t.Fatalf("MaxBodyBytes = %d, want %d", got, want)
	}
}
