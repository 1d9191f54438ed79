package driver

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/joeycumines/go-aio/aioerr"
)

// DirWatch is a handle to a directory watch started by WatchDirectory.
type DirWatch struct {
	w *fsnotify.Watcher
}

// Close stops the watch and releases its underlying inotify/kqueue
// resources.
func (d *DirWatch) Close() error { return d.w.Close() }

// WatchDirectory watches path (and, if recursive, every subdirectory
// beneath it at the time of the call) for filesystem change events,
// invoking cb for each. fsnotify is already a transitive dependency of
// spf13/viper for config-file hot reload; watch_directory exercises it
// directly rather than leaving it as dead weight.
func (l *Loop) WatchDirectory(path string, recursive bool, cb func(fsnotify.Event)) (*DirWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: watch_directory new watcher", err)
	}

	add := func(dir string) error {
		if err := w.Add(dir); err != nil {
			return aioerr.Wrap(aioerr.IO, "driver: watch_directory add "+dir, err)
		}
		return nil
	}

	if recursive {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return add(p)
			}
			return nil
		})
	} else {
		err = add(path)
	}
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if subErr := l.Submit(func() { cb(ev) }); subErr != nil {
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return &DirWatch{w: w}, nil
}
