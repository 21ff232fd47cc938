// Package cli holds the plumbing shared by the Autosend subcommands.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"go.miloapis.com/email-provider-autosend/internal/config"
	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

// NewClient loads the configuration from the command's flags and environment
// and builds an Autosend client that logs to the command's stderr.
func NewClient(cmd *cobra.Command) (*autosend.Client, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return cfg.NewClient(NewLogger(cmd.ErrOrStderr(), cfg.LogLevel))
}

// NewLogger returns a zap-backed logger. "debug" enables the SDK's request
// tracing at V(1).
func NewLogger(w io.Writer, level string) logr.Logger {
	return zap.New(zap.WriteTo(w), zap.Level(ZapLevel(level)))
}

// ZapLevel maps a configured log level onto zap. Unknown levels are info.
func ZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// PrintResponse writes the response body as indented JSON. A plain-text
// body is written as is, and an empty body prints the status code instead.
func PrintResponse(w io.Writer, resp *autosend.Response) error {
	if resp != nil && len(resp.Body) == 0 && resp.Text != "" {
		_, err := fmt.Fprintln(w, resp.Text)
		return err
	}
	if resp == nil || len(resp.Body) == 0 {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		_, err := fmt.Fprintf(w, "{\n  \"statusCode\": %d\n}\n", status)
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

// ReadJSON decodes the JSON document at path into v. A path of "-" reads
// from in. Unknown fields are rejected so typos surface before sending.
func ReadJSON(path string, in io.Reader, v any) error {
	var r io.Reader
	if path == "-" {
		r = in
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ParseFields turns key=value pairs into a map. Values that parse as JSON
// (numbers, booleans, objects) keep their type; anything else is a string.
func ParseFields(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	fields := make(map[string]any, len(pairs))
	for k, raw := range pairs {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[k] = v
	}
	return fields
}
