package verify

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/pkg/errors"
)

// SignatureError reports a detached signature that is missing or does not
// verify against the configured key.
type SignatureError struct {
	File string
	URL  string
	Err  error
}

func (e *SignatureError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("signature verification failed for %s (%s): %v", e.File, e.URL, e.Err)
	}
	return fmt.Sprintf("signature verification failed for %s: %v", e.File, e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// LoadKeyring reads an armored OpenPGP public key file.
func LoadKeyring(keyFile string) (openpgp.EntityList, error) {
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open signature key")
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse signature key %s", keyFile)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("signature key %s holds no keys", keyFile)
	}
	return keyring, nil
}

// VerifySignature checks a detached signature over filePath. Armored
// signatures are tried first, then binary ones.
func VerifySignature(keyring openpgp.EntityList, filePath, signaturePath string) error {
	binaryFile, err := os.Open(filePath)
	if err != nil {
		return &SignatureError{File: filePath, Err: errors.Wrap(err, "open artifact")}
	}
	defer binaryFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return &SignatureError{File: filePath, Err: errors.Wrap(err, "open signature")}
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, binaryFile, sigFile, nil)
	if err != nil {
		if _, serr := binaryFile.Seek(0, io.SeekStart); serr != nil {
			return &SignatureError{File: filePath, Err: serr}
		}
		if _, serr := sigFile.Seek(0, io.SeekStart); serr != nil {
			return &SignatureError{File: filePath, Err: serr}
		}
		_, err = openpgp.CheckDetachedSignature(keyring, binaryFile, sigFile, nil)
	}
	if err != nil {
		return &SignatureError{File: filePath, Err: err}
	}

	return nil
}
