package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
)

type FileStoreConfig struct {
	OutputDir   string
	PrettyPrint bool
	Logger      *zap.Logger
}

// FileStore keeps one JSON document per analysis on local disk.
type FileStore struct {
	config FileStoreConfig
	logger *zap.Logger
}

func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "failed to create output directory %s", config.OutputDir)
	}
	return &FileStore{config: config, logger: config.Logger}, nil
}

// Path is where the analysis with the given id is written.
func (s *FileStore) Path(requestID string) string {
	return filepath.Join(s.config.OutputDir, "analysis_"+filepath.Base(requestID)+".json")
}

// Save writes the analysis atomically, replacing any earlier copy with the same id.
func (s *FileStore) Save(ctx context.Context, out *models.AnalysisOutput) error {
	var (
		data []byte
		err  error
	)
	if s.config.PrettyPrint {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return eris.Wrap(err, "failed to encode analysis")
	}

	path := s.Path(out.RequestID)
	tmp, err := os.CreateTemp(s.config.OutputDir, ".analysis-*")
	if err != nil {
		return eris.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "failed to write analysis")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "failed to close analysis file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "failed to move analysis to %s", path)
	}

	s.logger.Info("saved analysis", zap.String("request_id", out.RequestID), zap.String("path", path))
	return nil
}

func (s *FileStore) Load(ctx context.Context, requestID string) (*models.AnalysisOutput, error) {
	data, err := os.ReadFile(s.Path(requestID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(ErrNotFound, requestID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read analysis")
	}

	var out models.AnalysisOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "failed to decode analysis")
	}
	return &out, nil
}
