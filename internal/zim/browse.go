package zim

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// maxRandomEntries caps one sampling call.
const maxRandomEntries = 50

// RandomEntry is one sampled entry attributed to its archive.
type RandomEntry struct {
	Archive    string `json:"zim_file"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	IsRedirect bool   `json:"is_redirect"`
}

// Browse scans an archive's entry listing in listing order, keeping entries
// whose path and title match the given case-insensitive substring patterns
// (both optional, combined with AND), up to limit entries.
func (s *Service) Browse(ctx context.Context, archive, pathPattern, titlePattern string, limit int) ([]EntryInfo, error) {
	if limit <= 0 {
		return nil, InvalidArgumentError("limit must be positive")
	}

	d, err := s.registry.Resolve(archive)
	if err != nil {
		return nil, err
	}

	h, err := s.archives.Acquire(ctx, d)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	pathNeedle := strings.ToLower(pathPattern)
	titleNeedle := strings.ToLower(titlePattern)

	matches := make([]EntryInfo, 0, limit)
	err = h.WalkEntries(func(e EntryInfo) bool {
		if pathNeedle != "" && !strings.Contains(strings.ToLower(e.Path), pathNeedle) {
			return true
		}
		if titleNeedle != "" && !strings.Contains(strings.ToLower(e.Title), titleNeedle) {
			return true
		}
		matches = append(matches, e)
		return len(matches) < limit
	})
	if err != nil {
		return nil, OpenFailureError(archive, err)
	}
	return matches, nil
}

// RandomEntries draws count entries across the requested archives (all
// discovered when empty), apportioned evenly with the remainder going to the
// first archives in name order. Draws are de-duplicated within a single call;
// a failing archive reduces its contribution instead of aborting.
func (s *Service) RandomEntries(ctx context.Context, archives []string, count int) ([]RandomEntry, error) {
	if count <= 0 || count > maxRandomEntries {
		return nil, InvalidArgumentError("count must be between 1 and %d", maxRandomEntries)
	}

	names, err := s.coordinator.targetArchives(archives)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []RandomEntry{}, nil
	}

	per := count / len(names)
	remainder := count % len(names)

	seen := make(map[string]struct{}, count)
	out := make([]RandomEntry, 0, count)
	for i, name := range names {
		want := per
		if i < remainder {
			want++
		}
		if want == 0 {
			continue
		}
		drawn, err := s.drawRandom(ctx, name, want, seen)
		if err != nil {
			s.log.Warn("random sampling failed",
				zap.String("archive", name), zap.Error(err))
			continue
		}
		out = append(out, drawn...)
	}
	return out, nil
}

// drawRandom samples up to want distinct entries from one archive. The
// attempt budget bounds the loop on small archives where the reader keeps
// returning entries the call already holds.
func (s *Service) drawRandom(ctx context.Context, name string, want int, seen map[string]struct{}) ([]RandomEntry, error) {
	d, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	h, err := s.archives.Acquire(ctx, d)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	out := make([]RandomEntry, 0, want)
	for attempts := 0; len(out) < want && attempts < want*4; attempts++ {
		info, err := h.RandomEntry()
		if err != nil {
			return out, err
		}
		key := name + "\x00" + info.Path
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, RandomEntry{
			Archive:    name,
			Path:       info.Path,
			Title:      info.Title,
			IsRedirect: info.IsRedirect,
		})
	}
	return out, nil
}
