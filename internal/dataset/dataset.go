// Package dataset stores uploaded training samples and writes their manifest.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/polski-lektor/lektor-tts/internal/storage"
)

const audioExtension = ".wav"

// File is one uploaded sample.
type File struct {
	Name    string
	Content io.Reader
}

// Entry is one manifest line.
type Entry struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// Manifest describes a prepared dataset.
type Manifest struct {
	ManifestPath string `json:"manifest_path" doc:"Where the JSON Lines manifest was written"`
	Samples      int    `json:"samples"       doc:"Number of samples listed in the manifest"`
}

// Preparer writes uploaded samples to storage and records them in a manifest.
type Preparer struct {
	store        storage.Store
	manifestName string
	log          *slog.Logger
}

// NewPreparer creates a Preparer writing manifestName into store.
func NewPreparer(store storage.Store, manifestName string, log *slog.Logger) *Preparer {
	if log == nil {
		log = slog.Default()
	}

	return &Preparer{
		store:        store,
		manifestName: manifestName,
		log:          log,
	}
}

// Prepare stores every file under its base name and writes one manifest line
// per stored file. Files without a usable name are skipped.
func (p *Preparer) Prepare(ctx context.Context, files []File) (*Manifest, error) {
	entries := make([]Entry, 0, len(files))

	for _, file := range files {
		name := filepath.Base(filepath.Clean("/" + file.Name))
		if !storage.ValidKey(name) || name == p.manifestName {
			p.log.Warn("Skipping dataset file with unusable name", "name", file.Name)
			continue
		}

		content, err := io.ReadAll(file.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file '%s': %w", name, err)
		}

		if err := p.store.Upload(ctx, name, content); err != nil {
			return nil, fmt.Errorf("failed to store dataset file: %w", err)
		}

		p.log.Debug("Stored dataset file", "name", name, "size", humanize.Bytes(uint64(len(content))))

		entries = append(entries, Entry{
			Path: name,
			Text: TranscriptFor(name),
		})
	}

	manifest, err := encodeManifest(entries)
	if err != nil {
		return nil, err
	}

	if err := p.store.Upload(ctx, p.manifestName, manifest); err != nil {
		return nil, fmt.Errorf("failed to store manifest: %w", err)
	}

	location := p.store.Location(p.manifestName)
	p.log.Info("Dataset prepared", "manifest", location, "samples", len(entries), "manifest_size", humanize.Bytes(uint64(len(manifest))))

	return &Manifest{
		ManifestPath: location,
		Samples:      len(entries),
	}, nil
}

// ReadManifest loads the entries of a previously prepared manifest.
func (p *Preparer) ReadManifest(ctx context.Context) ([]Entry, error) {
	data, err := p.store.Download(ctx, p.manifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("invalid manifest line %q: %w", line, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// TranscriptFor derives the placeholder transcript of a sample from its name.
func TranscriptFor(name string) string {
	return strings.ReplaceAll(name, audioExtension, "")
}

func encodeManifest(entries []Entry) ([]byte, error) {
	lines := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to encode manifest entry '%s': %w", entry.Path, err)
		}
		lines = append(lines, line)
	}

	return bytes.Join(lines, []byte("\n")), nil
}
