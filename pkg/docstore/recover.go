package docstore

import (
	"path/filepath"
	"strings"

	"github.com/jsreport/fsstore/pkg/fs"
)

// recoverSet scans one directory-mode entity set's top-level directory for
// leftover staging directories and finalizes or aborts each of them:
//
//   - a staging directory containing a commit marker was fully written
//     before the crash; it is finalized (old directory deleted if present,
//     staging renamed to its final name).
//   - a staging directory without a commit marker was interrupted mid
//     write; it is discarded outright.
//
// recoverSet is idempotent and safe to run even when there is nothing to
// recover (the common case on every normal startup).
func recoverSet(fsys fs.FS, dataDir string, set EntitySetDescriptor) error {
	if set.Mode != Directory {
		return nil
	}

	setDir := filepath.Join(dataDir, set.Name)

	exists, err := fsys.Exists(setDir)
	if err != nil {
		return ioErr(set.Name, "", err)
	}

	if !exists {
		return nil
	}

	entries, err := fsys.ReadDir(setDir)
	if err != nil {
		return ioErr(set.Name, "", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "~") {
			continue
		}

		stagingDir := filepath.Join(setDir, entry.Name())
		newPk, oldPk, ok := parseStagingName(entry.Name())

		if !ok {
			if err := fsys.RemoveAll(stagingDir); err != nil {
				return ioErr(set.Name, entry.Name(), err)
			}

			continue
		}

		committed, err := fsys.Exists(filepath.Join(stagingDir, commitMarkerName))
		if err != nil {
			return ioErr(set.Name, newPk, err)
		}

		if !committed {
			if err := fsys.RemoveAll(stagingDir); err != nil {
				return ioErr(set.Name, newPk, err)
			}

			continue
		}

		finalDir := filepath.Join(setDir, newPk)

		if oldPk != "" {
			oldDir := filepath.Join(setDir, oldPk)

			oldExists, err := fsys.Exists(oldDir)
			if err != nil {
				return ioErr(set.Name, newPk, err)
			}

			if oldExists {
				if err := fsys.RemoveAll(oldDir); err != nil {
					return ioErr(set.Name, newPk, err)
				}
			}
		}

		if err := fsys.Rename(stagingDir, finalDir); err != nil {
			return ioErr(set.Name, newPk, err)
		}
	}

	return nil
}

// parseStagingName splits a staging directory name into its new and old
// publicKey components.
//
// Two forms are recognized:
//
//	~~<new>       insert staging, no prior document (oldPk == "")
//	~<new>~<old>  update staging, replaces <old> on finalize
func parseStagingName(name string) (newPk, oldPk string, ok bool) {
	if strings.HasPrefix(name, "~~") {
		newPk = strings.TrimPrefix(name, "~~")
		if newPk == "" {
			return "", "", false
		}

		return newPk, "", true
	}

	if !strings.HasPrefix(name, "~") {
		return "", "", false
	}

	rest := strings.TrimPrefix(name, "~")

	idx := strings.Index(rest, "~")
	if idx < 0 {
		return "", "", false
	}

	newPk = rest[:idx]
	oldPk = rest[idx+1:]

	if newPk == "" || oldPk == "" {
		return "", "", false
	}

	return newPk, oldPk, true
}
