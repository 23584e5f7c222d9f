// Package cgi spawns an interpreter with a CGI/1.1 environment and
// parses the child's output into a response.
package cgi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// serverSoftware is the SERVER_SOFTWARE value handed to children.
const serverSoftware = "relay"

// stderrTailBytes bounds how much child stderr is echoed into a 500.
const stderrTailBytes = 512

// Typed CGI errors (spec error taxonomy).

// ScriptNotFoundError marks a configured script missing on disk.
type ScriptNotFoundError struct{ Path string }

func (e *ScriptNotFoundError) Error() string { return "cgi: script not found: " + e.Path }

// ExtensionNotAllowedError marks a script outside the extension
// allow-list.
type ExtensionNotAllowedError struct{ Ext string }

func (e *ExtensionNotAllowedError) Error() string { return "cgi: extension not allowed: " + e.Ext }

// ExecutionFailedError marks a child that could not be spawned.
type ExecutionFailedError struct{ Err error }

func (e *ExecutionFailedError) Error() string { return fmt.Sprintf("cgi: execution failed: %v", e.Err) }

func (e *ExecutionFailedError) Unwrap() error { return e.Err }

// ErrInvalidOutputFormat marks child output without the blank-line
// separator between headers and body.
var ErrInvalidOutputFormat = errors.New("cgi: invalid output format")

// Config locates the script and bounds what may run.
type Config struct {
	// Interpreter is the binary spawned for the script.
	Interpreter string

	// ScriptPath is the script file handed to the interpreter.
	ScriptPath string

	// AllowedExtensions lists the runnable script extensions,
	// dot included (".py").
	AllowedExtensions []string
}

// NewConfig builds a config with the python3 defaults the original
// deployment used.
func NewConfig(scriptPath string) Config {
	return Config{
		Interpreter:       "/usr/bin/python3",
		ScriptPath:        scriptPath,
		AllowedExtensions: []string{".py"},
	}
}

// Executor runs one configured script per request.
type Executor struct {
	cfg Config
	log *zap.Logger
}

// NewExecutor builds an executor.
func NewExecutor(cfg Config, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{cfg: cfg, log: log}
}

// Execute verifies the script, spawns the interpreter with the CGI/1.1
// environment derived from req, waits for exit and parses stdout into a
// response. The reactor blocks for the child's lifetime; that is the
// one latency-for-simplicity trade in the design.
func (e *Executor) Execute(req *http11.Request) (*http11.Response, error) {
	info, err := os.Stat(e.cfg.ScriptPath)
	if err != nil || info.IsDir() {
		return nil, &ScriptNotFoundError{Path: e.cfg.ScriptPath}
	}
	ext := filepath.Ext(e.cfg.ScriptPath)
	if !e.extensionAllowed(ext) {
		return nil, &ExtensionNotAllowedError{Ext: ext}
	}

	cmd := exec.Command(e.cfg.Interpreter, e.cfg.ScriptPath)
	cmd.Env = Environment(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Stdin stays closed: the request body travels through the
	// environment-mirrored headers, per the minimal CGI contract.

	if err := cmd.Start(); err != nil {
		return nil, &ExecutionFailedError{Err: err}
	}
	err = cmd.Wait()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ExecutionFailedError{Err: err}
		}
		tail := stderr.Bytes()
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		e.log.Warn("cgi script failed",
			zap.String("script", e.cfg.ScriptPath),
			zap.Int("exit_code", exitErr.ExitCode()))
		return http11.TextResponse(http11.StatusInternalServerError,
			"CGI script error: "+string(tail)), nil
	}

	return ParseOutput(stdout.Bytes())
}

func (e *Executor) extensionAllowed(ext string) bool {
	for _, allowed := range e.cfg.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// Environment builds the CGI/1.1 variable set for req: the fixed
// gateway variables plus every request header mirrored as
// HTTP_<UPPERCASED_DASH_TO_UNDERSCORE>.
func Environment(req *http11.Request) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=" + req.Version,
		"SERVER_SOFTWARE=" + serverSoftware,
		"REQUEST_METHOD=" + req.Method.String(),
		"SCRIPT_NAME=" + req.URI,
		"QUERY_STRING=",
	}
	for _, h := range req.Headers {
		name := "HTTP_" + strings.ToUpper(strings.ReplaceAll(string(h.Name), "-", "_"))
		env = append(env, name+"="+h.Value)
	}
	return env
}

// ParseOutput splits child stdout on the first CRLF CRLF: the prefix is
// the header block, the suffix the body. A `Status:` pseudo-header sets
// the response status (default 200); a missing Content-Type becomes
// text/plain. All other headers pass through verbatim, including 3xx
// Status lines without a Location.
func ParseOutput(output []byte) (*http11.Response, error) {
	idx := bytes.Index(output, []byte("\r\n\r\n"))
	if idx == -1 {
		return nil, ErrInvalidOutputFormat
	}
	headerBlock := output[:idx]
	bodyBytes := output[idx+4:]

	status := http11.StatusOK
	var headers http11.Headers
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		nameStr := strings.TrimSpace(string(name))
		valueStr := strings.TrimSpace(string(value))
		if strings.EqualFold(nameStr, "Status") {
			if fields := strings.Fields(valueStr); len(fields) > 0 {
				if code, err := strconv.Atoi(fields[0]); err == nil {
					if s, ok := http11.StatusFromCode(code); ok {
						status = s
					}
				}
			}
			continue
		}
		headers.Add(nameStr, valueStr)
	}
	if !headers.Has(http11.HeaderContentType) {
		headers.Add("Content-Type", "text/plain")
	}

	body, err := http11.InterpretBody(bodyBytes, headers.ContentType())
	if err != nil {
		body = http11.BinaryBody(bodyBytes)
	}
	return http11.NewResponse(status, headers, body), nil
}
