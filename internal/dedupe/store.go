// Package dedupe tracks which entry links have already been handled.
//
// A Store is loaded once at the start of a pass, mutated by that pass only,
// and flushed once at the end. Links are kept in insertion order with no
// duplicates; when more than Capacity links are held, the oldest inserted
// ones are dropped on Flush. There is no time-based expiry.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"couponwatch/internal/storage"
	logx "couponwatch/pkg/logx"
)

// DefaultCapacity is used when Options.Capacity is not positive.
const DefaultCapacity = 200

type Options struct {
	Capacity int
	// ReadOnly makes Flush a no-op (dry runs).
	ReadOnly bool
}

// Store is not safe for concurrent use; a pass owns it exclusively.
type Store struct {
	backend storage.Backend
	log     logx.Logger
	opts    Options

	links []string
	index map[string]struct{}
	added int
}

// Load reads the persisted links from backend.
func Load(ctx context.Context, backend storage.Backend, opts Options, log logx.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("dedupe: nil backend")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	links, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dedupe store: %w", err)
	}
	s := &Store{
		backend: backend,
		log:     log,
		opts:    opts,
		links:   make([]string, 0, len(links)),
		index:   make(map[string]struct{}, len(links)),
	}
	// tolerate stores written by hand or by older versions
	for _, l := range links {
		s.insert(l)
	}
	return s, nil
}

// Contains reports whether link was already recorded.
func (s *Store) Contains(link string) bool {
	_, ok := s.index[normalize(link)]
	return ok
}

// Record appends link. Recording a link twice has no effect.
func (s *Store) Record(link string) {
	if s.insert(link) {
		s.added++
	}
}

func (s *Store) insert(link string) bool {
	link = normalize(link)
	if link == "" {
		return false
	}
	if _, ok := s.index[link]; ok {
		return false
	}
	s.index[link] = struct{}{}
	s.links = append(s.links, link)
	return true
}

// Len returns the number of links held, before capacity trimming.
func (s *Store) Len() int { return len(s.links) }

// Added returns how many links were recorded since Load.
func (s *Store) Added() int { return s.added }

// Links returns the links that Flush would persist, oldest first.
func (s *Store) Links() []string {
	keep := s.links
	if over := len(keep) - s.opts.Capacity; over > 0 {
		keep = keep[over:]
	}
	return append([]string(nil), keep...)
}

// Flush trims the store to its capacity and persists it.
func (s *Store) Flush(ctx context.Context) error {
	links := s.Links()
	if s.opts.ReadOnly {
		s.log.Debug("dedupe flush skipped (read-only)", logx.Int("links", len(links)))
		return nil
	}
	if err := s.backend.Save(ctx, links); err != nil {
		return fmt.Errorf("save dedupe store: %w", err)
	}
	if dropped := len(s.links) - len(links); dropped > 0 {
		// keep the in-memory view consistent with what was persisted
		for _, l := range s.links[:dropped] {
			delete(s.index, l)
		}
		s.links = append(s.links[:0:0], links...)
		s.log.Debug("dedupe store trimmed", logx.Int("dropped", dropped))
	}
	s.log.Debug("dedupe store saved", logx.Int("links", len(links)), logx.Int("added", s.added))
	return nil
}

func normalize(link string) string { return strings.TrimSpace(link) }
