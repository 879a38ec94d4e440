package command

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Registry returns all CLI commands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:         "exec",
			Summary:      "exec file=<path>|code=<script> calldata=<str> timeout=<ms>",
			Method:       http.MethodPost,
			PathTemplate: "/execute",
			Fields: []Field{
				{Name: "file", Aliases: []string{"executable", "f"}, Prompt: "executable file", Type: FieldFile},
				{Name: "code", Aliases: []string{"script"}, Prompt: "inline script", Type: FieldString},
				{Name: "calldata", Aliases: []string{"input"}, Prompt: "calldata", Type: FieldString},
				{Name: "timeout", Aliases: []string{"t"}, Prompt: "timeout (ms)", Type: FieldInt64, Required: true},
			},
		},
		{
			Name:         "health",
			Summary:      "health",
			Method:       http.MethodGet,
			PathTemplate: "/healthz",
		},
		{
			Name:         "metrics",
			Summary:      "metrics",
			Method:       http.MethodGet,
			PathTemplate: "/metrics",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Name] = cmd
	}
	return result
}

// Names returns the registered command names in order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)

	var body []byte
	if cmd.Method != http.MethodGet && cmd.Method != http.MethodDelete {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    cmd.PathTemplate,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Name {
	case "exec":
		return buildExecPayload(params)
	}
	return nil, nil
}

type execPayload struct {
	Executable string `json:"executable"`
	Calldata   string `json:"calldata"`
	Timeout    int64  `json:"timeout"`
}

func buildExecPayload(params Params) (interface{}, error) {
	var executable []byte
	switch {
	case params.Get("file") != "":
		data, err := ReadFile(params.Get("file"))
		if err != nil {
			return nil, err
		}
		executable = data
	case params.Has("code"):
		// Typed lines cannot hold a newline, so \n stands for one.
		executable = []byte(strings.ReplaceAll(params.Get("code"), `\n`, "\n"))
	default:
		return nil, fmt.Errorf("file or code is required")
	}

	timeout, err := ParseInt64(params.Get("timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}

	return execPayload{
		Executable: base64.StdEncoding.EncodeToString(executable),
		Calldata:   params.Get("calldata"),
		Timeout:    timeout,
	}, nil
}
