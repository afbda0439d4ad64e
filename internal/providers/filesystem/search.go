package filesystem

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

// Search reasons recorded for entries the walk could not inspect
const (
	SkipUnreadable = "unreadable"
	SkipStat       = "stat_failed"
)

// Search walks folder recursively and returns files whose base name
// starts with term, ignoring case. Entries that cannot be read are
// reported as skipped; they never abort the walk.
func (e *Engine) Search(ctx context.Context, folder, term string) (result *SearchResult, err error) {
	defer e.track("seekfolder")(&err)

	root, _, err := e.lookupDir(folder)
	if err != nil {
		return nil, err
	}

	prefix := strings.ToLower(term)
	var mu sync.Mutex
	result = &SearchResult{Matches: []FileDescriptor{}}

	skip := func(p, reason string) {
		mu.Lock()
		result.Skipped = append(result.Skipped, SkippedEntry{Path: e.resolver.Rel(p), Reason: reason})
		mu.Unlock()
	}

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			skip(p, SkipUnreadable)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel := e.resolver.Rel(p)
		if d.IsDir() {
			if e.isReserved(p) || !e.rules.MatchesRestriction(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasPrefix(strings.ToLower(d.Name()), prefix) {
			return nil
		}
		if !e.rules.MatchesRestriction(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			skip(p, SkipStat)
			return nil
		}

		desc := e.describe(p, info)
		mu.Lock()
		result.Matches = append(result.Matches, desc)
		mu.Unlock()
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fserr.Server(err, folder)
	}

	sort.Slice(result.Matches, func(i, j int) bool { return result.Matches[i].ID < result.Matches[j].ID })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })
	return result, nil
}
