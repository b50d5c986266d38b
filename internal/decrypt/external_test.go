package decrypt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeTool writes an executable shell script standing in for mp4decrypt
// and returns its absolute path. script is the body after the shebang line.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell tool requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "mp4decrypt")
	body := "#!/bin/sh\n" + script
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestNewExternalCENC_RequiresAtLeastOneKey(t *testing.T) {
	_, err := NewExternalCENC(nil, "mp4decrypt")
	require.Error(t, err)
}

func TestNewExternalCENC_ValidatesKeyLength(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	_, err := NewExternalCENC(map[string]string{
		"00112233445566778899aabbccddeeff": "tooshort",
	}, tool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 or 64 hex")
}

func TestNewExternalCENC_NormalizesKIDAndKey(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	dec, err := NewExternalCENC(map[string]string{
		"0011-2233-4455-6677-8899-AABB-CCDD-EEFF": "0x00112233445566778899AABBCCDDEEFF",
	}, tool)
	require.NoError(t, err)
	_, ok := dec.keyMap["00112233445566778899aabbccddeeff"]
	require.True(t, ok, "KID should be normalized to lowercase with dashes stripped")
	assert.Equal(t, "00112233445566778899aabbccddeeff", dec.keyMap["00112233445566778899aabbccddeeff"])
}

func TestExternalCENC_Decrypt_RejectsShortPayload(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	dec, err := NewExternalCENC(map[string]string{
		"00112233445566778899aabbccddeeff": "00112233445566778899aabbccddeeff",
	}, tool)
	require.NoError(t, err)

	_, err = dec.Decrypt(context.Background(), []byte("short"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

// TestExternalCENC_SingleKeyUsedWhenKIDAbsentOrMatching covers invariant S8:
// with exactly one registered key, decrypting with no KID and with that
// KID both succeed and use the same key.
func TestExternalCENC_SingleKeyUsedWhenKIDAbsentOrMatching(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	kid := "00112233445566778899aabbccddeeff"
	dec, err := NewExternalCENC(map[string]string{kid: kid}, tool)
	require.NoError(t, err)

	payload := []byte("0123456789abcdef")

	out, err := dec.Decrypt(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	out, err = dec.Decrypt(context.Background(), payload, kid)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestExternalCENC_MultipleKeysRequireExplicitKID(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	dec, err := NewExternalCENC(map[string]string{
		"00112233445566778899aabbccddeeff": "00112233445566778899aabbccddeeff",
		"ffeeddccbbaa99887766554433221100": "ffeeddccbbaa99887766554433221100",
	}, tool)
	require.NoError(t, err)

	_, err = dec.Decrypt(context.Background(), []byte("0123456789abcdef"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key for KID")
}

func TestExternalCENC_UnknownKIDFails(t *testing.T) {
	tool := writeFakeTool(t, "cp \"$3\" \"$4\"\n")
	dec, err := NewExternalCENC(map[string]string{
		"00112233445566778899aabbccddeeff": "00112233445566778899aabbccddeeff",
	}, tool)
	require.NoError(t, err)

	_, err = dec.Decrypt(context.Background(), []byte("0123456789abcdef"), "ffeeddccbbaa99887766554433221100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key for KID")
}

// TestExternalCENC_StreamingSucceedsDirectly covers the primary stdin/stdout
// path when the tool accepts "-" for both operands.
func TestExternalCENC_StreamingSucceedsDirectly(t *testing.T) {
	tool := writeFakeTool(t, "cat\n") // echoes stdin to stdout unchanged
	kid := "00112233445566778899aabbccddeeff"
	dec, err := NewExternalCENC(map[string]string{kid: kid}, tool)
	require.NoError(t, err)

	payload := []byte("fmp4-ciphertext-bytes")
	out, err := dec.Decrypt(context.Background(), payload, kid)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

// TestExternalCENC_FallsBackToTempFiles covers scenario S6: a tool that
// rejects "-" as a file operand triggers the temp-file fallback, and the
// result matches the tool's file-mode output. Temp files must not persist.
func TestExternalCENC_FallsBackToTempFiles(t *testing.T) {
	tool := writeFakeTool(t, `if [ "$3" = "-" ]; then
  echo "open -: no such file or directory" 1>&2
  exit 1
fi
cp "$3" "$4"
`)
	kid := "00112233445566778899aabbccddeeff"
	dec, err := NewExternalCENC(map[string]string{kid: kid}, tool)
	require.NoError(t, err)

	payload := []byte("fmp4-ciphertext-bytes")
	out, err := dec.Decrypt(context.Background(), payload, kid)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "dashcast-decrypt-in-", "temp input file must not persist")
	}
}

// TestExternalCENC_GenuineFailureIsNotRetried covers the case where the
// tool fails for a real decryption reason (not a "-" rejection): the
// fallback path must not be attempted, and the error is surfaced as-is.
func TestExternalCENC_GenuineFailureIsNotRetried(t *testing.T) {
	tool := writeFakeTool(t, "echo \"bad key\" 1>&2\nexit 1\n")
	kid := "00112233445566778899aabbccddeeff"
	dec, err := NewExternalCENC(map[string]string{kid: kid}, tool)
	require.NoError(t, err)

	_, err = dec.Decrypt(context.Background(), []byte("fmp4-ciphertext-bytes"), kid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestPassthrough_ReturnsInputUnchanged(t *testing.T) {
	p := NewPassthrough()
	payload := []byte("anything at all")
	out, err := p.Decrypt(context.Background(), payload, "does-not-matter")
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}
