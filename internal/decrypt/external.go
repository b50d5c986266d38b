package decrypt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dashcast/dashcast/internal/util"
)

// ExternalCENC decrypts CENC-protected segments by shelling out to an
// external tool (e.g. mp4decrypt / Shaka Packager) once per segment, keyed
// by Key ID.
type ExternalCENC struct {
	keyMap   map[string]string // normalized KID -> normalized key
	toolPath string
}

// NewExternalCENC validates the key map and resolves the decrypt tool.
// Keys and KIDs are normalized to lowercase hex with dashes removed. The
// tool must be discoverable on PATH or be an absolute path to an existing
// non-directory file;
// construction fails otherwise so a misconfigured stream never starts.
func NewExternalCENC(keyMap map[string]string, toolPath string) (*ExternalCENC, error) {
	if len(keyMap) == 0 {
		return nil, fmt.Errorf("external CENC decryptor requires at least one key")
	}

	normalized := make(map[string]string, len(keyMap))
	for kid, key := range keyMap {
		nKID := NormalizeHex(kid)
		nKey := NormalizeHex(key)
		if err := validateKey(nKey); err != nil {
			return nil, fmt.Errorf("key for kid %s: %w", nKID, err)
		}
		normalized[nKID] = nKey
	}

	resolved, err := resolveTool(toolPath)
	if err != nil {
		return nil, err
	}

	return &ExternalCENC{keyMap: normalized, toolPath: resolved}, nil
}

func resolveTool(toolPath string) (string, error) {
	if toolPath == "" {
		toolPath = "mp4decrypt"
	}
	if filepath.IsAbs(toolPath) {
		if info, err := os.Stat(toolPath); err == nil && !info.IsDir() {
			return toolPath, nil
		}
		return "", fmt.Errorf("decrypt tool not found at %s", toolPath)
	}
	path, err := util.FindBinary(toolPath, "")
	if err != nil {
		return "", fmt.Errorf("decrypt tool %q not found on PATH: %w", toolPath, err)
	}
	return path, nil
}

// Decrypt looks up the key for kid (or the sole registered key if kid is
// empty), then runs the external tool. It tries stdin/stdout streaming
// first and falls back to temporary files if the tool rejects "-" as a
// file operand.
func (e *ExternalCENC) Decrypt(ctx context.Context, payload []byte, kid string) ([]byte, error) {
	key, err := e.resolveKey(kid)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	keyArg := fmt.Sprintf("%s:%s", key.kid, key.key)

	out, err := e.decryptStreaming(ctx, keyArg, payload)
	if err == nil {
		return out, nil
	}
	var toolErr *toolError
	if errorsAsToolError(err, &toolErr) && toolErr.rejectsFileOperand() {
		return e.decryptViaTempFiles(ctx, keyArg, payload)
	}
	return nil, err
}

type resolvedKey struct{ kid, key string }

func (e *ExternalCENC) resolveKey(kid string) (resolvedKey, error) {
	if kid != "" {
		norm := NormalizeHex(kid)
		key, ok := e.keyMap[norm]
		if !ok {
			return resolvedKey{}, fmt.Errorf("no key for KID %s", norm)
		}
		return resolvedKey{kid: norm, key: key}, nil
	}
	if len(e.keyMap) == 1 {
		for k, v := range e.keyMap {
			return resolvedKey{kid: k, key: v}, nil
		}
	}
	return resolvedKey{}, fmt.Errorf("no key for KID")
}

// decryptStreaming invokes the tool as "<tool> --key <kid>:<key> - -",
// writing payload to stdin and reading plaintext from stdout.
func (e *ExternalCENC) decryptStreaming(ctx context.Context, keyArg string, payload []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.toolPath, "--key", keyArg, "-", "-")
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		return nil, newToolError(runErr, stderr.String(), payload)
	}
	if stdout.Len() == 0 {
		return nil, &toolError{msg: fmt.Sprintf("decrypt produced no output (stderr: %s)", strings.TrimSpace(stderr.String()))}
	}
	return stdout.Bytes(), nil
}

// decryptViaTempFiles is the fallback path for tools that cannot treat "-"
// as stdin/stdout. Both temp files are removed regardless of outcome.
func (e *ExternalCENC) decryptViaTempFiles(ctx context.Context, keyArg string, payload []byte) ([]byte, error) {
	inFile, err := os.CreateTemp("", "dashcast-decrypt-in-*.m4s")
	if err != nil {
		return nil, fmt.Errorf("create temp input file: %w", err)
	}
	inPath := inFile.Name()
	defer os.Remove(inPath)

	if _, err := inFile.Write(payload); err != nil {
		inFile.Close()
		return nil, fmt.Errorf("write temp input file: %w", err)
	}
	if err := inFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp input file: %w", err)
	}

	outPath := inPath + ".out"
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, e.toolPath, "--key", keyArg, inPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, decryptError(err, stderr.String(), payload)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read temp output file: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decrypt produced no output (stderr: %s)", strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func decryptError(runErr error, stderr string, payload []byte) error {
	return newToolError(runErr, stderr, payload)
}

// toolError wraps a failed decrypt-tool invocation with enough context to
// both report a useful message and decide whether the stdin/stdout mode
// should be retried via temp files.
type toolError struct {
	msg    string
	stderr string
}

func (e *toolError) Error() string { return e.msg }

// rejectsFileOperand reports whether the tool's stderr looks like it
// rejected "-" as a file argument, rather than a genuine decryption
// failure, so the caller knows to retry with real temp files.
func (e *toolError) rejectsFileOperand() bool {
	msg := strings.ToLower(e.stderr)
	return strings.Contains(msg, "no such file") && strings.Contains(msg, "-")
}

func newToolError(runErr error, stderr string, payload []byte) *toolError {
	exitCode := -1
	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		exitCode = exitErr.ExitCode()
	}
	prefixLen := 8
	if len(payload) < prefixLen {
		prefixLen = len(payload)
	}
	return &toolError{
		msg:    fmt.Sprintf("decrypt failed (exit %d): %s (input prefix: %x)", exitCode, strings.TrimSpace(stderr), payload[:prefixLen]),
		stderr: stderr,
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// errorsAsToolError reports whether err is a *toolError, assigning it to
// target like errors.As without pulling in the errors package for a single
// concrete-type check.
func errorsAsToolError(err error, target **toolError) bool {
	if te, ok := err.(*toolError); ok {
		*target = te
		return true
	}
	return false
}
