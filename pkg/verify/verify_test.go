package verify

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "sha256 checksum",
			content: "hello world",
			want:    "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			name:    "empty file",
			content: "",
			want:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(t.TempDir(), "test.txt")
			require.NoError(t, os.WriteFile(testFile, []byte(tt.content), 0644))

			got, err := ComputeChecksum(testFile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ComputeChecksum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestVerifyChecksum(t *testing.T) {
	const sum = "6ae8a75555209fd6c44157c0aed8016e763ff435a19cf186f76863140143ff72"

	tests := []struct {
		name         string
		content      string
		expectedHash string
		wantErr      bool
	}{
		{
			name:         "valid sha256 checksum",
			content:      "test content",
			expectedHash: sum,
		},
		{
			name:         "case insensitive checksum match",
			content:      "test content",
			expectedHash: "6AE8A75555209FD6C44157C0AED8016E763FF435A19CF186F76863140143FF72",
		},
		{
			name:         "flipped byte in content",
			content:      "test contenT",
			expectedHash: sum,
			wantErr:      true,
		},
		{
			name:         "flipped digit in checksum",
			content:      "test content",
			expectedHash: "7ae8a75555209fd6c44157c0aed8016e763ff435a19cf186f76863140143ff72",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(t.TempDir(), "test.txt")
			require.NoError(t, os.WriteFile(testFile, []byte(tt.content), 0644))

			got, err := VerifyChecksum(testFile, tt.expectedHash)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, sum, got)
				return
			}

			var mismatch *MismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.expectedHash, mismatch.Expected)
			assert.Equal(t, got, mismatch.Actual)
		})
	}
}

func newSigningKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("cass release", "test", "release@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	keyFile := filepath.Join(t.TempDir(), "release.asc")
	require.NoError(t, os.WriteFile(keyFile, buf.Bytes(), 0644))
	return entity, keyFile
}

func TestVerifySignature(t *testing.T) {
	signer, keyFile := newSigningKey(t)
	dir := t.TempDir()

	artifact := filepath.Join(dir, "cass.tar.gz")
	require.NoError(t, os.WriteFile(artifact, []byte("archive bytes"), 0644))

	var armored, binary bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&armored, signer, bytes.NewReader([]byte("archive bytes")), nil))
	require.NoError(t, openpgp.DetachSign(&binary, signer, bytes.NewReader([]byte("archive bytes")), nil))

	armoredSig := filepath.Join(dir, "cass.tar.gz.asc")
	binarySig := filepath.Join(dir, "cass.tar.gz.sig")
	require.NoError(t, os.WriteFile(armoredSig, armored.Bytes(), 0644))
	require.NoError(t, os.WriteFile(binarySig, binary.Bytes(), 0644))

	keyring, err := LoadKeyring(keyFile)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(keyring, artifact, armoredSig))
	assert.NoError(t, VerifySignature(keyring, artifact, binarySig))

	tampered := filepath.Join(dir, "tampered.tar.gz")
	require.NoError(t, os.WriteFile(tampered, []byte("archive bytez"), 0644))
	err = VerifySignature(keyring, tampered, armoredSig)
	var sigErr *SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, tampered, sigErr.File)

	_, otherKey := newSigningKey(t)
	otherRing, err := LoadKeyring(otherKey)
	require.NoError(t, err)
	assert.Error(t, VerifySignature(otherRing, artifact, binarySig))

	assert.Error(t, VerifySignature(keyring, artifact, filepath.Join(dir, "missing.sig")))
}

func TestLoadKeyringErrors(t *testing.T) {
	_, err := LoadKeyring(filepath.Join(t.TempDir(), "none.asc"))
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.asc")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0644))
	_, err = LoadKeyring(garbage)
	assert.Error(t, err)
}
