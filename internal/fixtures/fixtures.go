// Package fixtures holds the canned Bot API response bodies served by the
// built-in scenarios.
package fixtures

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed data/*.json
var files embed.FS

// Fixture names.
const (
	GetMe                  = "getMe"
	GetMeError             = "getMeError"
	GetUpdatesFourMessages = "getUpdatesFourMessages"
	GetUpdatesTwoMessages  = "getUpdatesTwoMessages"
	GetUpdatesZeroMessages = "getUpdatesZeroMessages"
	GetUpdatesOneMessage   = "getUpdatesOneMessage"
	SendMessageHi          = "sendMessageHi"
	SendMessageReply       = "sendMessageReply"
)

// ErrNotFound is returned for an unknown fixture name.
var ErrNotFound = errors.New("fixture not found")

// Get returns the body of the named fixture.
func Get(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "/\\.") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := files.ReadFile("data/" + name + ".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}
	return data, nil
}

// Names lists all embedded fixtures, sorted.
func Names() []string {
	entries, err := files.ReadDir("data")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
