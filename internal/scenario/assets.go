package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abhisek/lingoflow/internal/store"
)

// BuiltinCliparts are the illustrations shipped with the web client.
var BuiltinCliparts = []string{
	"convenience_store_snack_aisle.png",
	store.DefaultClipart,
	"hospital_reception.png",
	"hotel_reception_desk.png",
	"restaurant_ordering_table.png",
	"train_station_ticket_counter.png",
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".svg": true, ".gif": true}

// Assets resolves clipart references against the known illustrations.
type Assets struct {
	dir   string
	known map[string]bool
}

// NewAssets indexes the image files in dir. With an empty dir the built-in
// list is used. The default clipart is always known.
func NewAssets(dir string) (*Assets, error) {
	a := &Assets{dir: dir, known: map[string]bool{store.DefaultClipart: true}}
	if dir == "" {
		for _, n := range BuiltinCliparts {
			a.known[n] = true
		}
		return a, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read clipart dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		a.known[e.Name()] = true
	}
	return a, nil
}

// Dir returns the indexed directory, empty for the built-in list.
func (a *Assets) Dir() string { return a.dir }

// Resolve returns name when it is a known asset and the default otherwise.
func (a *Assets) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if name != filepath.Base(name) || !a.known[name] {
		return store.DefaultClipart
	}
	return name
}

// Names lists the known assets in sorted order.
func (a *Assets) Names() []string {
	names := make([]string, 0, len(a.known))
	for n := range a.known {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
