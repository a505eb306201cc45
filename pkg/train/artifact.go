package train

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/detectors"
)

// ErrCorruptArtifact is returned when a model file fails its checksum.
var ErrCorruptArtifact = errors.New("corrupt model artifact")

var magic = []byte("ZSMODEL\x00")

// artifact is the gob payload. The file is magic, blake3 digest of the
// payload, payload.
type artifact struct {
	Columns []string
	Classes []int
	Model   []byte
}

// Save writes the model to a single file.
func (m *Model) Save(filename string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

// Marshal encodes the model with its checksum.
func (m *Model) Marshal() ([]byte, error) {
	blob, err := m.Classifier.Save()
	if err != nil {
		return nil, errors.Wrap(err, "serialize classifier")
	}

	var payload bytes.Buffer
	err = gob.NewEncoder(&payload).Encode(artifact{
		Columns: m.Columns,
		Classes: m.Classifier.Classes(),
		Model:   blob,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode artifact")
	}

	sum := blake3.Sum256(payload.Bytes())
	out := make([]byte, 0, len(magic)+len(sum)+payload.Len())
	out = append(out, magic...)
	out = append(out, sum[:]...)
	return append(out, payload.Bytes()...), nil
}

// LoadModel reads a model file into clf, which must be the same
// implementation that was saved.
func LoadModel(filename string, clf detectors.Classifier) (*Model, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(capture.ErrInputNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	m, err := Unmarshal(data, clf)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filename)
	}
	return m, nil
}

// Unmarshal verifies and decodes a model produced by Marshal.
func Unmarshal(data []byte, clf detectors.Classifier) (*Model, error) {
	header := len(magic) + 32
	if len(data) < header || !bytes.Equal(data[:len(magic)], magic) {
		return nil, errors.Wrap(ErrCorruptArtifact, "bad header")
	}

	payload := data[header:]
	sum := blake3.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(magic):header]) {
		return nil, errors.Wrap(ErrCorruptArtifact, "checksum mismatch")
	}

	var a artifact
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&a); err != nil {
		return nil, errors.Wrap(ErrCorruptArtifact, err.Error())
	}
	if err := clf.Load(a.Model); err != nil {
		return nil, errors.Wrap(err, "restore classifier")
	}
	return &Model{Columns: a.Columns, Classifier: clf}, nil
}
