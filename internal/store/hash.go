package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// ComputeHash returns a deterministic hash of a unit's inputs: the source
// text and the extension scripts it was checked with. Script order does
// not affect the hash.
func ComputeHash(src []byte, scripts map[string][]byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "source:%d\n", len(src))
	h.Write(src)

	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "\nscript:%s:%d\n", name, len(scripts[name]))
		h.Write(scripts[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Unchanged reports whether the latest unit recorded for path has hash.
func (s *Store) Unchanged(path, hash string) (bool, error) {
	u, err := s.UnitByPath(path)
	if err != nil {
		return false, err
	}
	return u != nil && u.Hash == hash, nil
}
