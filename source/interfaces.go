package source

import (
	"context"
	"time"
)

// RawReply is one message in a record's reply thread, as reported by
// the external platform.
type RawReply struct {
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"posted_at"`
}

// RawAttachment is attachment metadata as reported by the external
// platform. Attachment bytes are never fetched.
type RawAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// RawRecord is a platform-agnostic source record together with its
// auxiliary parts. Fetcher implementations translate their platform's
// wire format into this shape; the engine never sees anything rawer.
type RawRecord struct {
	OriginalID  string            `json:"original_id"`
	ObjectType  string            `json:"object_type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Author      string            `json:"author"`
	Labels      map[string]string `json:"labels,omitempty"`
	Replies     []RawReply        `json:"replies,omitempty"`
	Attachments []RawAttachment   `json:"attachments,omitempty"`
	Payload     []byte            `json:"payload,omitempty"` // opaque source-specific payload
}

// Page is one page of fetched records. When Done is true, NextCursor
// is meaningless and the pass over the source is complete.
type Page struct {
	Records    []RawRecord
	NextCursor string
	Done       bool
}

// Fetcher produces pages of raw records for one (tenant, platform)
// pair. Implementations must be resumable from an opaque cursor (the
// empty cursor means "start from the beginning") and must eventually
// return a page with Done set.
// Implementations must be safe for concurrent use across tenants.
type Fetcher interface {
	FetchPage(ctx context.Context, tenantID, platform, cursor string) (*Page, error)
}
