package offline

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

const stateKeyInfo = "licensing offline state v1"

// StateFile stores a Session as JSON with an HMAC-SHA256 seal.
type StateFile struct {
	path string
	key  []byte
}

type sealedState struct {
	Session json.RawMessage `json:"session"`
	MAC     string          `json:"mac"`
}

// NewStateFile derives the sealing key from secret. The same secret must be
// used to read the file back.
func NewStateFile(path string, secret []byte) (*StateFile, error) {
	if len(secret) < 16 {
		return nil, errs.New(errs.CodeInvalidRequest, "offline.NewStateFile", "state key must be at least 16 bytes")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(stateKeyInfo)), key); err != nil {
		return nil, err
	}
	return &StateFile{path: path, key: key}, nil
}

func (f *StateFile) Path() string {
	return f.path
}

func (f *StateFile) mac(data []byte) []byte {
	h := hmac.New(sha256.New, f.key)
	h.Write(data)
	return h.Sum(nil)
}

// Save writes s atomically with 0600 permissions.
func (f *StateFile) Save(s *Session) error {
	const op = "offline.StateFile.Save"
	body, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidRequest, op, err)
	}
	data, err := json.Marshal(sealedState{
		Session: body,
		MAC:     hex.EncodeToString(f.mac(body)),
	})
	if err != nil {
		return errs.Wrap(errs.CodeInvalidRequest, op, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errs.Storage(op, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Storage(op, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errs.Storage(op, err)
	}
	return nil
}

// Load reads and verifies the session. A missing file is NotFound; a file
// whose seal does not verify is BadSignature.
func (f *StateFile) Load() (*Session, error) {
	const op = "offline.StateFile.Load"
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New(errs.CodeNotFound, op, "no offline session saved")
	}
	if err != nil {
		return nil, errs.Storage(op, err)
	}

	var sealed sealedState
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, errs.Wrap(errs.CodeMalformed, op, err)
	}
	mac, err := hex.DecodeString(sealed.MAC)
	if err != nil || !hmac.Equal(mac, f.mac(sealed.Session)) {
		return nil, errs.New(errs.CodeBadSignature, op, "state file seal does not verify")
	}

	var s Session
	if err := json.Unmarshal(sealed.Session, &s); err != nil {
		return nil, errs.Wrap(errs.CodeMalformed, op, err)
	}
	return &s, nil
}

// Remove deletes the file. A missing file is not an error.
func (f *StateFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Storage("offline.StateFile.Remove", err)
	}
	return nil
}
