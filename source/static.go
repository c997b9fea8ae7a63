package source

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// StaticFetcher serves records held in memory, paged. It is used in
// tests and by the seeder; the cursor is the decimal offset of the
// next record.
type StaticFetcher struct {
	mu       sync.RWMutex
	records  map[string][]RawRecord // keyed by tenantID + ":" + platform
	pageSize int
}

var _ Fetcher = (*StaticFetcher)(nil)

// NewStaticFetcher creates a StaticFetcher with the given page size.
func NewStaticFetcher(pageSize int) *StaticFetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &StaticFetcher{
		records:  make(map[string][]RawRecord),
		pageSize: pageSize,
	}
}

// SetRecords replaces the record set for a (tenant, platform) pair.
func (f *StaticFetcher) SetRecords(tenantID, platform string, records []RawRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tenantID+":"+platform] = records
}

// FetchPage implements Fetcher.
func (f *StaticFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*Page, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f.mu.RLock()
	records := f.records[tenantID+":"+platform]
	f.mu.RUnlock()

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoCursor, cursor)
		}
		offset = parsed
	}

	if offset >= len(records) {
		return &Page{Done: true}, nil
	}

	end := offset + f.pageSize
	if end > len(records) {
		end = len(records)
	}

	page := &Page{Records: records[offset:end]}
	if end >= len(records) {
		page.Done = true
	} else {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}
