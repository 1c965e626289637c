package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/config"
	"github.com/stemsi/untis-notifier/internal/model"
)

// CacheRepository stores the fetched payloads and the teacher lookup as
// pretty-printed JSON files in one directory.
type CacheRepository struct {
	dir   string
	files *config.CacheFileStruct
}

func NewCacheRepository(dir string) *CacheRepository {
	return &CacheRepository{dir: dir, files: config.CacheFile}
}

func (r *CacheRepository) Path(name string) string {
	return filepath.Join(r.dir, name)
}

func (r *CacheRepository) SaveSubjects(subjects []model.Subject) error {
	return r.write(r.files.Subjects, subjects)
}

func (r *CacheRepository) SaveTimetable(entries []model.TimetableEntry) error {
	return r.write(r.files.Timetable, entries)
}

func (r *CacheRepository) SaveTeachers(teachers model.TeacherLookup) error {
	return r.write(r.files.Teachers, teachers)
}

func (r *CacheRepository) LoadSubjects() ([]model.Subject, error) {
	var subjects []model.Subject
	if err := r.read(r.files.Subjects, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *CacheRepository) LoadTimetable() ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	if err := r.read(r.files.Timetable, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *CacheRepository) LoadTeachers() (model.TeacherLookup, error) {
	teachers := model.TeacherLookup{}
	if err := r.read(r.files.Teachers, &teachers); err != nil {
		return nil, err
	}
	return teachers, nil
}

// IsNotExist reports whether err came from a cache file that does not exist yet.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (r *CacheRepository) read(name string, dst interface{}) error {
	op := "cache.read " + name

	data, err := os.ReadFile(r.Path(name))
	if err != nil {
		return apperr.New(apperr.ErrStorage, op, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.New(apperr.ErrStorage, op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// SaveFetch persists one fetch. Both payloads are encoded and staged before
// either file is replaced, and the timetable is committed first because the
// diff and the composer start from it.
func (r *CacheRepository) SaveFetch(subjects []model.Subject, entries []model.TimetableEntry) error {
	timetable, err := r.stage(r.files.Timetable, entries)
	if err != nil {
		return err
	}
	subjectsTmp, err := r.stage(r.files.Subjects, subjects)
	if err != nil {
		os.Remove(timetable)
		return err
	}

	if err := r.commit(r.files.Timetable, timetable); err != nil {
		os.Remove(subjectsTmp)
		return err
	}
	return r.commit(r.files.Subjects, subjectsTmp)
}

// write replaces the file atomically: a crash leaves either the old or the
// new content, never a truncated file.
func (r *CacheRepository) write(name string, v interface{}) error {
	tmpName, err := r.stage(name, v)
	if err != nil {
		return err
	}
	return r.commit(name, tmpName)
}

// stage encodes v into a temp file next to name and returns its path.
func (r *CacheRepository) stage(name string, v interface{}) (string, error) {
	op := "cache.write " + name

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", apperr.New(apperr.ErrStorage, op, fmt.Errorf("encode: %w", err))
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", apperr.New(apperr.ErrStorage, op, err)
	}

	tmp, err := os.CreateTemp(r.dir, name+".*.tmp")
	if err != nil {
		return "", apperr.New(apperr.ErrStorage, op, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", apperr.New(apperr.ErrStorage, op, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", apperr.New(apperr.ErrStorage, op, err)
	}
	return tmpName, nil
}

func (r *CacheRepository) commit(name, tmpName string) error {
	if err := os.Rename(tmpName, r.Path(name)); err != nil {
		os.Remove(tmpName)
		return apperr.New(apperr.ErrStorage, "cache.write "+name, err)
	}
	return nil
}
