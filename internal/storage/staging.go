package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned when a staged or durable artifact does not exist:
// never staged, already promoted, or cleaned up out of band.
var ErrNotFound = errors.New("artifact not found")

// ErrWrite is returned on an I/O fault while staging or promoting.
var ErrWrite = errors.New("storage write failed")

const previewSuffix = ".preview"

// StagingStore holds uploaded photos on local disk until a client confirms
// the pickup, at which point Promote relocates the artifact into the durable
// store. Abandoned artifacts are never expired here; cleanup is an external
// concern.
type StagingStore struct {
	dir     string
	durable DurableStore
}

// NewStagingStore creates a staging store rooted at dir, creating it if
// needed.
func NewStagingStore(dir string, durable DurableStore) (*StagingStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(ErrWrite, err.Error())
	}
	return &StagingStore{dir: dir, durable: durable}, nil
}

// Stage writes raw upload bytes under a fresh collision-resistant filename
// and returns it. The filename doubles as the single-use confirmation token.
func (s *StagingStore) Stage(data []byte, originalName string) (string, error) {
	filename := fmt.Sprintf("%s_%s", randomHex(), sanitizeName(originalName))
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", pkgerrors.Wrap(ErrWrite, err.Error())
	}
	return filename, nil
}

// PutPreview stores the annotated preview alongside the staged raw artifact.
func (s *StagingStore) PutPreview(filename string, annotated []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, filename+previewSuffix), annotated, 0o644); err != nil {
		return pkgerrors.Wrap(ErrWrite, err.Error())
	}
	return nil
}

// ReadStaged returns the raw bytes staged under filename, or ErrNotFound.
func (s *StagingStore) ReadStaged(filename string) ([]byte, error) {
	return s.readFile(filename)
}

// ReadPreview returns the annotated preview for filename, or ErrNotFound.
func (s *StagingStore) ReadPreview(filename string) ([]byte, error) {
	return s.readFile(filename + previewSuffix)
}

func (s *StagingStore) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "could not read staged artifact")
	}
	return data, nil
}

// Promote relocates the artifact for filename from staging into the durable
// store and returns the durable reference. The staged file is claimed with an
// atomic rename first, so of any number of concurrent promotes for the same
// filename exactly one succeeds and the rest observe ErrNotFound; a second
// promote after success is indistinguishable from a never-staged filename.
//
// The durable copy is the annotated preview when one exists, the raw upload
// otherwise. A failure after the claim can leave a durable file with no
// ledger row; that orphan window is accepted and left to an out-of-band
// reconciliation pass.
func (s *StagingStore) Promote(ctx context.Context, filename string) (string, error) {
	staged := filepath.Join(s.dir, filename)
	claimed := staged + ".promoting"

	// Atomic claim: exactly one concurrent caller wins the rename.
	if err := os.Rename(staged, claimed); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", pkgerrors.Wrap(ErrWrite, err.Error())
	}

	data, err := os.ReadFile(claimed)
	if err != nil {
		return "", pkgerrors.Wrap(ErrWrite, err.Error())
	}
	if preview, err := s.readFile(filename + previewSuffix); err == nil {
		data = preview
	}

	if err := s.durable.Put(ctx, filename, data); err != nil {
		return "", err
	}

	if err := os.Remove(claimed); err != nil {
		log.Printf("Failed to remove claimed staging file %s: %v", claimed, err)
	}
	if err := os.Remove(filepath.Join(s.dir, filename+previewSuffix)); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove staged preview for %s: %v", filename, err)
	}

	return filename, nil
}

// randomHex returns a 32-character hex token.
func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// sanitizeName strips any path components from a client-supplied filename.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	return name
}
