package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	overlayMu sync.RWMutex
	overlays  = make(map[string]string)
)

// OverlayDescriptor describes a named CUE fragment tightening the schema.
type OverlayDescriptor struct {
	Name   string
	Source string
}

// RegisterOverlay adds CUE constraints that are unified with the built-in
// schema, e.g. a site policy of `#Config: rules: limits: insulation_min_mohm: >=2`.
// The fragment must not carry a package clause.
func RegisterOverlay(name, src string) error {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return errors.New("overlay name must not be empty")
	}
	if strings.TrimSpace(src) == "" {
		return errors.New("overlay source must not be empty")
	}
	if strings.HasPrefix(strings.TrimSpace(src), "package ") {
		return fmt.Errorf("overlay %s must not declare a package", normalized)
	}
	overlayMu.Lock()
	defer overlayMu.Unlock()
	if _, exists := overlays[normalized]; exists {
		return fmt.Errorf("overlay %s already registered", normalized)
	}
	overlays[normalized] = src
	return nil
}

// RegisterOverlayDescriptors registers all provided overlay descriptors.
func RegisterOverlayDescriptors(descs ...OverlayDescriptor) error {
	for _, desc := range descs {
		if err := RegisterOverlay(desc.Name, desc.Source); err != nil {
			return err
		}
	}
	return nil
}

// ResolveOverlays returns the registered fragments ordered by name.
func ResolveOverlays() []string {
	overlayMu.RLock()
	defer overlayMu.RUnlock()
	if len(overlays) == 0 {
		return nil
	}
	names := make([]string, 0, len(overlays))
	for name := range overlays {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, overlays[name])
	}
	return out
}

// ResetOverlaysForTest clears the overlay registry. This helper is intended for tests only.
func ResetOverlaysForTest() {
	overlayMu.Lock()
	overlays = make(map[string]string)
	overlayMu.Unlock()
}
