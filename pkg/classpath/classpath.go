// Package classpath resolves logical class names (a/b/C) to the raw bytes
// of their .class resource, against directories, zip/jar archives, and
// combinations of both.
package classpath

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
)

// Entry is a capability: given a logical class name, return its bytes or
// report that the entry has nothing for that name.
type Entry interface {
	// Open returns the bytes of name+".class", or ok=false if this entry
	// holds no such resource.
	Open(name string) (data []byte, ok bool, err error)
	Close() error
}

// Parse splits a classpath string on ':' and builds one Entry per
// component: a trailing '*' builds a Wildcard, a .zip/.jar/.ZIP/.JAR
// suffix builds an Archive, anything else builds a Directory. The result
// is wrapped in a Composite that tries components left to right.
func Parse(classPath string) (Entry, error) {
	if classPath == "" {
		return &Composite{}, nil
	}
	parts := strings.Split(classPath, ":")
	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		e, err := parseComponent(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &Composite{entries: entries}, nil
}

func parseComponent(p string) (Entry, error) {
	switch {
	case strings.HasSuffix(p, "*"):
		return NewWildcard(strings.TrimSuffix(p, "*"))
	case hasArchiveSuffix(p):
		return NewArchive(p)
	default:
		return NewDirectory(p)
	}
}

func hasArchiveSuffix(p string) bool {
	for _, suf := range []string{".zip", ".jar", ".ZIP", ".JAR"} {
		if strings.HasSuffix(p, suf) {
			return true
		}
	}
	return false
}

// classResourcePath turns a logical class name into a filesystem-style
// relative path, normalizing '/' to the host separator.
func classResourcePath(name string) string {
	return filepath.FromSlash(name) + ".class"
}

// Directory resolves names against a base directory on disk.
type Directory struct {
	base string
}

// NewDirectory builds a Directory entry rooted at base. It fails if base
// does not name a directory.
func NewDirectory(base string) (*Directory, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("classpath: %s: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("classpath: %s: not a directory", base)
	}
	return &Directory{base: base}, nil
}

func (d *Directory) Open(name string) ([]byte, bool, error) {
	path := filepath.Join(d.base, classResourcePath(name))
	data, err := mmapFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("classpath: reading %s: %w", path, err)
	}
	return data, true, nil
}

func (d *Directory) Close() error { return nil }

// mmapFile memory-maps path read-only and copies its contents out, so the
// mapping can be unmapped immediately rather than held open for the life
// of the process. Matches the open-map-copy shape of an inspection tool
// that trades a full os.ReadFile for a memory map on the fast path.
func mmapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return []byte{}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// Archive resolves names against entries of a zip-format archive (.jar or
// .zip). The archive is memory-mapped and its directory opened lazily, on
// first Open call, not at construction.
type Archive struct {
	path   string
	mapped mmap.MMap
	file   *os.File
	reader *zip.Reader
}

// NewArchive builds an Archive entry for the zip/jar at path. It fails if
// path does not name a regular file; the archive itself is not opened
// until the first Open call.
func NewArchive(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("classpath: %s: not a regular file", path)
	}
	return &Archive{path: path}, nil
}

func (a *Archive) ensureOpen() error {
	if a.reader != nil {
		return nil
	}
	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("classpath: opening %s: %w", a.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("classpath: stat %s: %w", a.path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return fmt.Errorf("classpath: %s: empty archive", a.path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("classpath: mmap %s: %w", a.path, err)
	}
	r, err := zip.NewReader(sliceReaderAt(m), int64(len(m)))
	if err != nil {
		m.Unmap()
		f.Close()
		return fmt.Errorf("classpath: opening zip %s: %w", a.path, err)
	}
	a.mapped = m
	a.file = f
	a.reader = r
	return nil
}

func (a *Archive) Open(name string) ([]byte, bool, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, false, err
	}
	target := name + ".class"
	for _, f := range a.reader.File {
		if f.Name == target {
			rc, err := f.Open()
			if err != nil {
				return nil, false, fmt.Errorf("classpath: opening %s in %s: %w", target, a.path, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, false, fmt.Errorf("classpath: reading %s in %s: %w", target, a.path, err)
			}
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (a *Archive) Close() error {
	if a.mapped != nil {
		a.mapped.Unmap()
	}
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// sliceReaderAt adapts a byte slice to io.ReaderAt without copying.
type sliceReaderAt []byte

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// jmodHeaderSize is the 4-byte "JM\x01\x00" magic a .jmod file carries
// before its embedded zip data.
const jmodHeaderSize = 4

// jmodClassesPrefix is where a .jmod's zip stores class resources, as
// opposed to a plain jar's resources at the zip root.
const jmodClassesPrefix = "classes/"

// Jmod resolves names against a JDK .jmod file's "classes/" entries. Like
// Archive, it mmaps the file and defers opening the zip directory until
// the first Open call.
type Jmod struct {
	path   string
	mapped mmap.MMap
	file   *os.File
	reader *zip.Reader
}

// NewJmod builds a Jmod entry for the .jmod file at path.
func NewJmod(path string) (*Jmod, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("classpath: %s: not a regular file", path)
	}
	return &Jmod{path: path}, nil
}

func (j *Jmod) ensureOpen() error {
	if j.reader != nil {
		return nil
	}
	f, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("classpath: opening %s: %w", j.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("classpath: stat %s: %w", j.path, err)
	}
	if info.Size() <= jmodHeaderSize {
		f.Close()
		return fmt.Errorf("classpath: %s: too small to be a jmod", j.path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("classpath: mmap %s: %w", j.path, err)
	}
	zipData := sliceReaderAt(m[jmodHeaderSize:])
	r, err := zip.NewReader(zipData, int64(len(m)-jmodHeaderSize))
	if err != nil {
		m.Unmap()
		f.Close()
		return fmt.Errorf("classpath: opening jmod zip %s: %w", j.path, err)
	}
	j.mapped = m
	j.file = f
	j.reader = r
	return nil
}

func (j *Jmod) Open(name string) ([]byte, bool, error) {
	if err := j.ensureOpen(); err != nil {
		return nil, false, err
	}
	target := jmodClassesPrefix + name + ".class"
	for _, f := range j.reader.File {
		if f.Name == target {
			rc, err := f.Open()
			if err != nil {
				return nil, false, fmt.Errorf("classpath: opening %s in %s: %w", target, j.path, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, false, fmt.Errorf("classpath: reading %s in %s: %w", target, j.path, err)
			}
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (j *Jmod) Close() error {
	if j.mapped != nil {
		j.mapped.Unmap()
	}
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// Composite tries an ordered list of sub-entries and returns the first hit.
type Composite struct {
	entries []Entry
}

// NewComposite wraps entries in arrival order.
func NewComposite(entries ...Entry) *Composite {
	return &Composite{entries: entries}
}

func (c *Composite) Open(name string) ([]byte, bool, error) {
	for _, e := range c.entries {
		data, ok, err := e.Open(name)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (c *Composite) Close() error {
	var first error
	for _, e := range c.entries {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Wildcard is built from a directory path ending in '*': at construction
// it enumerates the directory and builds an Archive for every .jar/.JAR
// regular file found, in sorted order.
type Wildcard struct {
	*Composite
}

// NewWildcard builds a Wildcard over the .jar/.JAR files directly inside
// dir (dir is the path with the trailing '*' already stripped).
func NewWildcard(dir string) (*Wildcard, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("classpath: wildcard %s*: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".jar") || strings.HasSuffix(e.Name(), ".JAR") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	archives := make([]Entry, 0, len(names))
	for _, n := range names {
		a, err := NewArchive(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return &Wildcard{Composite: &Composite{entries: archives}}, nil
}
