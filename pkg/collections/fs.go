package collections

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LogFiles is a convenience debugging function to log the files under a
// given dir at debug level.
func LogFiles(logger zerolog.Logger, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("walk")
			return err
		}
		logger.Debug().Str("path", path).Int64("size", info.Size()).Msg("file")
		return nil
	})
}

// CollectFiles gathers the paths under dir, relative to dir. The result
// includes "." for dir itself.
func CollectFiles(dir string) (files []string, err error) {
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return
}
