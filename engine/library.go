package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/simhook/errors"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Source is one library module. Name is the instance name other modules
// import it by. Data, when set, is used instead of reading Path. Both hold
// a binary module.
type Source struct {
	Name string
	Path string
	Data []byte
}

// SourceFromFile names a library file after its stem: lib/simlib.wasm
// becomes "simlib".
func SourceFromFile(path string) Source {
	base := filepath.Base(path)
	return Source{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
}

// Binary returns the module's bytes. Anything without the wasm magic is
// rejected as invalid data.
func (s Source) Binary() ([]byte, error) {
	data := s.Data
	if data == nil {
		raw, err := os.ReadFile(s.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
					Path(s.Name).
					Detail("library file %q not found", s.Path).
					Cause(err).
					Build()
			}
			return nil, errors.Load("read "+s.Path, err)
		}
		data = raw
	}

	if !bytes.HasPrefix(data, wasmMagic) {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Path(s.Name).
			Detail("not a binary module").
			Build()
	}
	return data, nil
}

func isLibraryFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wasm")
}

// Discover lists the library: every .wasm file in dir in name
// order, followed by the explicit module paths. Module names must be unique.
func Discover(dir string, modules []string) ([]Source, error) {
	var sources []Source

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
					Detail("library directory %q not found", dir).
					Cause(err).
					Build()
			}
			return nil, errors.Load("scan library directory "+dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !isLibraryFile(e.Name()) {
				continue
			}
			sources = append(sources, SourceFromFile(filepath.Join(dir, e.Name())))
		}
	}

	for _, m := range modules {
		sources = append(sources, SourceFromFile(m))
	}

	return sources, checkNames(sources)
}

func checkNames(sources []Source) error {
	seen := make(map[string]string, len(sources))
	for _, s := range sources {
		if s.Name == "" {
			return errors.New(errors.PhaseLoad, errors.KindMalformedInput).
				Detail("library module %q has no name", s.Path).
				Build()
		}
		if prev, ok := seen[s.Name]; ok {
			return errors.New(errors.PhaseLoad, errors.KindMalformedInput).
				Path(s.Name).
				Detail("module name used by both %q and %q", prev, s.Path).
				Build()
		}
		seen[s.Name] = s.Path
	}
	return nil
}
