package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSVLogStore zapisuje vzorky do plochého logu, jeden řádek "epoch,teplota,vlhkost".
// Při překročení maxBytes se soubor přejmenuje na <soubor>.1 a začne se znovu
// (drží se jedna záloha). maxBytes <= 0 znamená neomezený růst.
type CSVLogStore struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
}

// NewCSVLogStore připraví adresář pro log. Samotný soubor vzniká až při prvním zápisu.
func NewCSVLogStore(path string, maxBytes int64) (*CSVLogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVLogStore{path: path, maxBytes: maxBytes}, nil
}

func (c *CSVLogStore) backupPath() string {
	return c.path + ".1"
}

// Append používá vzor Open-Write-Close pro každý zápis.
func (c *CSVLogStore) Append(_ context.Context, s Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rotateIfNeeded(); err != nil {
		return fmt.Errorf("%w: rotate %s: %w", ErrStoreWrite, c.path, err)
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStoreWrite, c.path, err)
	}

	line := fmt.Sprintf("%d,%.2f,%.2f\n", s.Timestamp.Unix(), s.Temperature, s.Humidity)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStoreWrite, c.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStoreWrite, c.path, err)
	}
	return nil
}

func (c *CSVLogStore) rotateIfNeeded() error {
	if c.maxBytes <= 0 {
		return nil
	}
	stat, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if stat.Size() < c.maxBytes {
		return nil
	}
	return os.Rename(c.path, c.backupPath())
}

// Range načte zálohu i aktuální soubor a vyfiltruje okno dotazu.
// Poškozené řádky přeskakuje.
func (c *CSVLogStore) Range(ctx context.Context, q HistoryQuery, now time.Time) ([]Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var all []Sample
	for _, path := range []string{c.backupPath(), c.path} {
		samples, err := readCSVLog(path)
		if err != nil {
			return nil, err
		}
		all = append(all, samples...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return filterWindow(all, q, now.UTC().Truncate(time.Second)), nil
}

// ErrNoHistoryLog: surový log ještě neexistuje (žádný zápis od startu ani záloha).
var ErrNoHistoryLog = fmt.Errorf("history log missing: %w", os.ErrNotExist)

// WriteRaw pošle surový obsah logu (záloha + aktuální soubor) tak, jak leží na disku.
// Když chybí oba soubory, vrátí ErrNoHistoryLog a do w nic nezapíše.
func (c *CSVLogStore) WriteRaw(_ context.Context, w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, path := range []string{c.backupPath(), c.path} {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return ErrNoHistoryLog
	}

	for _, f := range files {
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
	}
	return nil
}

func readCSVLog(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if s, ok := parseCSVLine(scanner.Text()); ok {
			out = append(out, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return out, nil
}

func parseCSVLine(line string) (Sample, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return Sample{}, false
	}
	epoch, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Sample{}, false
	}
	temp, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Sample{}, false
	}
	hum, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Sample{}, false
	}
	return NewSample(time.Unix(epoch, 0), temp, hum), true
}

var (
	_ HistoryStore = (*CSVLogStore)(nil)
	_ RawLog       = (*CSVLogStore)(nil)
)
