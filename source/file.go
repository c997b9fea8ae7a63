// Copyright 2026 Meridian Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileFetcher reads records from JSON export files on disk. It expects
// one file per (tenant, platform) pair named "<tenant>_<platform>.json"
// under the root directory, containing a JSON array of RawRecord.
//
// The export is re-read on every run start (cursor ""), so a file
// replaced between runs is picked up naturally. Within a run the
// snapshot is cached so that pagination stays consistent even if the
// file changes mid-run.
type FileFetcher struct {
	root     string
	pageSize int
	static   *StaticFetcher
}

var _ Fetcher = (*FileFetcher)(nil)

// NewFileFetcher creates a FileFetcher reading from the given root
// directory.
func NewFileFetcher(root string, pageSize int) *FileFetcher {
	return &FileFetcher{
		root:     root,
		pageSize: pageSize,
		static:   NewStaticFetcher(pageSize),
	}
}

// FetchPage implements Fetcher.
func (f *FileFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*Page, error) {
	if cursor == "" {
		records, err := f.load(tenantID, platform)
		if err != nil {
			return nil, err
		}
		f.static.SetRecords(tenantID, platform, records)
		cursor = "0"
	}
	return f.static.FetchPage(ctx, tenantID, platform, cursor)
}

func (f *FileFetcher) load(tenantID, platform string) ([]RawRecord, error) {
	path := filepath.Join(f.root, fmt.Sprintf("%s_%s.json", tenantID, platform))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source export %s: %w", path, err)
	}

	var records []RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing source export %s: %w", path, err)
	}
	return records, nil
}
