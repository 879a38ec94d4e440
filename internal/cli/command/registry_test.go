package command

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func decodeExec(t *testing.T, body []byte) execPayload {
	t.Helper()
	var payload execPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal body failed: %v", err)
	}
	return payload
}

func TestBuildExecWithFile(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "main.sh")
	script := "#!/bin/sh\necho hello\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		t.Fatalf("write temp script failed: %v", err)
	}

	params, err := ParseArgs([]string{"file=" + scriptPath, "calldata=abc", "timeout=1500"})
	if err != nil {
		t.Fatalf("parse args failed: %v", err)
	}
	req, err := BuildRequest(Registry()["exec"], params)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	if req.Method != "POST" || req.Path != "/execute" {
		t.Fatalf("unexpected request: %s %s", req.Method, req.Path)
	}
	payload := decodeExec(t, req.Body)
	if payload.Executable != base64.StdEncoding.EncodeToString([]byte(script)) {
		t.Fatalf("executable not base64 of file: %q", payload.Executable)
	}
	if payload.Calldata != "abc" || payload.Timeout != 1500 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildExecWithInlineCodeAndAliases(t *testing.T) {
	params, err := ParseArgs([]string{`script=#!/bin/sh\necho hi`, "input=x", "t=10"})
	if err != nil {
		t.Fatalf("parse args failed: %v", err)
	}
	req, err := BuildRequest(Registry()["exec"], params)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	payload := decodeExec(t, req.Body)
	decoded, _ := base64.StdEncoding.DecodeString(payload.Executable)
	if string(decoded) != "#!/bin/sh\necho hi" {
		t.Fatalf("decoded executable = %q", decoded)
	}
	if payload.Calldata != "x" || payload.Timeout != 10 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildExecEmptyCodeIsAllowed(t *testing.T) {
	params := Params{}
	params.Set("code", "")
	params.Set("timeout", "0")
	req, err := BuildRequest(Registry()["exec"], params)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	if payload := decodeExec(t, req.Body); payload.Executable != "" {
		t.Fatalf("expected empty executable, got %q", payload.Executable)
	}
}

func TestBuildExecErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no executable", []string{"timeout=10"}},
		{"bad timeout", []string{"code=x", "timeout=soon"}},
		{"missing file", []string{"file=" + filepath.Join(t.TempDir(), "absent"), "timeout=1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := ParseArgs(tc.args)
			if err != nil {
				t.Fatalf("parse args failed: %v", err)
			}
			if _, err := BuildRequest(Registry()["exec"], params); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBuildGetCommandsHaveNoBody(t *testing.T) {
	for _, name := range []string{"health", "metrics"} {
		req, err := BuildRequest(Registry()[name], Params{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if req.Method != "GET" || req.Body != nil {
			t.Fatalf("%s: unexpected request %+v", name, req)
		}
	}
}

func TestParseArgsRejectsBareTokens(t *testing.T) {
	if _, err := ParseArgs([]string{"timeout"}); err == nil {
		t.Fatalf("expected error for token without '='")
	}
	if _, err := ParseArgs([]string{"=1"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names(Registry())
	want := []string{"exec", "health", "metrics"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v", names)
		}
	}
}
