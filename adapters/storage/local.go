// Package storage provides core.Store implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Keys stored next to the options inside a job file.
const (
	filenameKey = "filename"
	sourceKey   = "source"
)

// Local keeps destinations and job files on the local filesystem.  The job
// file of dir/name.ext is dir/<jobsDir>/name.ext.json, a flat JSON object of
// the requested options plus "filename" (the source base name) and "source".
type Local struct {
	jobsDir     string
	permissions os.FileMode
}

// NewLocal creates a Local store.  An empty jobsDir defaults to ".jobs".
func NewLocal(jobsDir string, perm os.FileMode) *Local {
	if jobsDir == "" {
		jobsDir = ".jobs"
	}
	if perm == 0 {
		perm = 0o644
	}
	return &Local{jobsDir: jobsDir, permissions: perm}
}

// JobPath returns the job-file path for destination.
func (l *Local) JobPath(destination string) string {
	return filepath.Join(filepath.Dir(destination), l.jobsDir, filepath.Base(destination)+".json")
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
	}
	fi, err := os.Stat(path)
	if err == nil {
		return fi.Mode().IsRegular() && fi.Size() > 0, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists.stat", err)
}

func (l *Local) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	return nil
}

func (l *Local) WriteJob(ctx context.Context, job core.JobFile) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.job.write", err)
	}
	if job.Destination == "" {
		return apperrors.New(apperrors.CategoryStorage, "local.job.write", apperrors.ErrEmptyInput)
	}

	doc := make(map[string]any, len(job.Options)+1)
	for k, v := range job.Options {
		doc[strings.ToLower(k)] = v
	}
	doc[filenameKey] = job.Filename
	if job.Filename == "" && job.Source != "" {
		doc[filenameKey] = filepath.Base(job.Source)
	}
	if job.Source != "" {
		doc[sourceKey] = job.Source
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.job.encode", err)
	}

	path := l.JobPath(job.Destination)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.job.mkdir", err)
	}
	// Write then rename so readers never see a half-written job.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.job.write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Wrap(apperrors.CategoryStorage, "local.job.rename", err)
	}
	return nil
}

func (l *Local) ReadJob(ctx context.Context, destination string) (*core.JobFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.job.read", err)
	}
	raw, err := os.ReadFile(l.JobPath(destination))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.job.read",
				fmt.Errorf("%w: %s", apperrors.ErrJobNotFound, destination))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.job.read", err)
	}

	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.job.decode", err)
	}
	job := &core.JobFile{Destination: destination}
	job.Filename, _ = doc[filenameKey].(string)
	job.Source, _ = doc[sourceKey].(string)
	if job.Source == "" && job.Filename != "" {
		job.Source = filepath.Join(filepath.Dir(destination), job.Filename)
	}
	delete(doc, filenameKey)
	delete(doc, sourceKey)
	job.Options = doc
	return job, nil
}

// RemoveJob deletes the job file of destination, if any.
func (l *Local) RemoveJob(ctx context.Context, destination string) error {
	return l.Remove(ctx, l.JobPath(destination))
}
