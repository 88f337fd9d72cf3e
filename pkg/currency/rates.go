package currency

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// RatesFile is the on-disk rates format:
//
//	base = "EUR"
//	updated = "2026-10-01"
//
//	[rates]
//	USD = 1.08
//	GBP = 0.85
type RatesFile struct {
	Base    string             `toml:"base"`
	Updated string             `toml:"updated,omitempty"`
	Rates   map[string]float64 `toml:"rates"`
}

// LoadRatesFile reads rates from path. When the file declares a base it
// must match base.
func LoadRatesFile(path, base string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rates file: %w", err)
	}

	var rf RatesFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rates file %s: %w", path, err)
	}
	if rf.Base != "" && !strings.EqualFold(rf.Base, base) {
		return nil, fmt.Errorf("rates file %s is based on %s, expected %s", path, rf.Base, base)
	}
	return rf.Rates, nil
}

// LoadFile replaces the converter rates with the content of path.
func (c *Converter) LoadFile(path string) error {
	rates, err := LoadRatesFile(path, c.base)
	if err != nil {
		return err
	}
	if err := c.SetRates(rates); err != nil {
		return fmt.Errorf("rates file %s: %w", path, err)
	}
	return nil
}

// Watch reloads the rates file whenever it changes, until ctx is done.
// The parent directory is watched so atomic replacements are seen.
// Invalid files are logged and leave the current rates in place.
func (c *Converter) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating rates watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				// Let the writer finish.
				time.Sleep(100 * time.Millisecond)
				if _, err := os.Stat(abs); os.IsNotExist(err) {
					logger.Warnf("rates file %s was removed, keeping current rates", abs)
					continue
				}
				if err := c.LoadFile(abs); err != nil {
					logger.Errorf("reloading rates: %v", err)
					continue
				}
				logger.Infof("reloaded rates from %s", abs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("rates watcher error: %v", err)
			}
		}
	}()
	return nil
}
