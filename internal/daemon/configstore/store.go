// Package configstore implements the Daemon Config Store (SPEC_FULL.md
// §4.G): atomic read/append/remove of gateway-registration entries in
// a local TOML file, grounded on the atomic-write convention plexd's
// fsutil package uses for its own on-disk state.
package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the default location of the daemon's config file.
const DefaultPath = "/etc/wirewarden/daemon.toml"

// ErrDuplicate is returned by Append when the registration's interface
// or (api_host, api_token) pair already exists in the file.
var ErrDuplicate = errors.New("configstore: duplicate registration")

// Registration is one gateway's registration with the planner.
type Registration struct {
	APIHost   string `toml:"api_host"`
	APIToken  string `toml:"api_token"`
	Interface string `toml:"interface"`
}

// Store manages the on-disk registration file at Path. The file is
// decoded into a generic map so that keys this store doesn't know
// about survive a rewrite unchanged, per spec.md §6: "unknown keys are
// tolerated and preserved across rewrites."
type Store struct {
	Path string
}

// New builds a Store for the given path, defaulting to DefaultPath.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{Path: path}
}

// Load parses the registration file. A missing file is an empty list;
// callers that require the file to exist (the daemon command) check
// Exists themselves before calling Load.
func (s *Store) Load() ([]Registration, error) {
	doc, err := s.readDoc()
	if err != nil {
		return nil, err
	}
	return doc.servers()
}

// Exists reports whether the config file is present and non-empty.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path)
	return err == nil && info.Size() > 0
}

// Append adds a registration, rejecting duplicates by (api_host,
// api_token) or by interface name, per spec.md §4.G.
func (s *Store) Append(reg Registration) error {
	doc, err := s.readDoc()
	if err != nil {
		return err
	}

	regs, err := doc.servers()
	if err != nil {
		return err
	}
	for _, existing := range regs {
		if existing.Interface == reg.Interface {
			return fmt.Errorf("%w: interface %q already registered", ErrDuplicate, reg.Interface)
		}
		if existing.APIHost == reg.APIHost && existing.APIToken == reg.APIToken {
			return fmt.Errorf("%w: registration for %s already exists", ErrDuplicate, reg.APIHost)
		}
	}

	doc.setServers(append(regs, reg))
	return s.writeDoc(doc)
}

// RemoveByToken filters out the registration whose api_token matches,
// writing the result atomically. A token that matches nothing is not
// an error: eviction is idempotent.
func (s *Store) RemoveByToken(token string) error {
	doc, err := s.readDoc()
	if err != nil {
		return err
	}

	regs, err := doc.servers()
	if err != nil {
		return err
	}

	filtered := regs[:0]
	for _, reg := range regs {
		if reg.APIToken != token {
			filtered = append(filtered, reg)
		}
	}

	doc.setServers(filtered)
	return s.writeDoc(doc)
}

// AutoAssignInterface picks the lowest unused wgN among current
// entries, per spec.md §4.G.
func (s *Store) AutoAssignInterface() (string, error) {
	regs, err := s.Load()
	if err != nil {
		return "", err
	}

	used := make(map[int]bool, len(regs))
	for _, r := range regs {
		var n int
		if _, err := fmt.Sscanf(r.Interface, "wg%d", &n); err == nil {
			used[n] = true
		}
	}

	for n := 0; ; n++ {
		if !used[n] {
			return fmt.Sprintf("wg%d", n), nil
		}
	}
}

// tomlDoc wraps the raw decoded tree. Only the "servers" key is ever
// touched by this package; every other key round-trips untouched.
type tomlDoc map[string]interface{}

func (s *Store) readDoc() (tomlDoc, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return tomlDoc{}, nil
		}
		return nil, fmt.Errorf("configstore: read %s: %w", s.Path, err)
	}

	doc := tomlDoc{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configstore: parse %s: %w", s.Path, err)
	}
	return doc, nil
}

func (s *Store) writeDoc(doc tomlDoc) error {
	data, err := toml.Marshal(map[string]interface{}(doc))
	if err != nil {
		return fmt.Errorf("configstore: marshal: %w", err)
	}
	return writeFileAtomic(s.Path, data, 0o600)
}

func (d tomlDoc) servers() ([]Registration, error) {
	raw, ok := d["servers"]
	if !ok {
		return nil, nil
	}

	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("configstore: servers key is not an array")
	}

	out := make([]Registration, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("configstore: malformed servers entry")
		}
		out = append(out, Registration{
			APIHost:   stringField(m, "api_host"),
			APIToken:  stringField(m, "api_token"),
			Interface: stringField(m, "interface"),
		})
	}
	return out, nil
}

func (d tomlDoc) setServers(regs []Registration) {
	entries := make([]interface{}, len(regs))
	for i, r := range regs {
		entries[i] = map[string]interface{}{
			"api_host":  r.APIHost,
			"api_token": r.APIToken,
			"interface": r.Interface,
		}
	}
	d["servers"] = entries
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// writeFileAtomic writes data to path via a temp file, fsync, and
// rename, so readers never observe a partially-written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("configstore: mkdir %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, ".tmp-"+filepath.Base(path))
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("configstore: open temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("configstore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("configstore: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("configstore: close temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}
