package source

import (
	"sort"

	"github.com/meridianhq/syncline/core"
)

// Normalizer merges raw records with their auxiliary parts into
// canonical IntegratedObjects. It is stateless and safe for concurrent
// use; Normalize performs no I/O.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize builds the IntegratedObject for a raw record fetched for
// the given (tenant, platform) pair. Replies are ordered by post time
// (then author, then body) and attachments by name, so that a source
// returning parts in a different order still produces the same
// normalized content and hash.
//
// Malformed records (missing identity, empty content) return a
// *NormalizationError.
func (n *Normalizer) Normalize(tenantID, platform string, raw *RawRecord) (*core.IntegratedObject, error) {
	if raw.OriginalID == "" {
		return nil, &NormalizationError{Field: "original_id", Reason: "missing"}
	}
	if raw.ObjectType == "" {
		return nil, &NormalizationError{OriginalID: raw.OriginalID, Field: "object_type", Reason: "missing"}
	}
	if raw.Title == "" && raw.Body == "" {
		return nil, &NormalizationError{OriginalID: raw.OriginalID, Field: "title", Reason: "record has no title and no body"}
	}

	key := core.ObjectKey{
		TenantID:   tenantID,
		Platform:   platform,
		ObjectType: raw.ObjectType,
		OriginalID: raw.OriginalID,
	}
	if err := key.Validate(); err != nil {
		return nil, &NormalizationError{OriginalID: raw.OriginalID, Field: "key", Reason: err.Error()}
	}

	content := core.NormalizedContent{
		Title:  raw.Title,
		Body:   raw.Body,
		Author: raw.Author,
	}

	if len(raw.Labels) > 0 {
		content.Labels = make(map[string]string, len(raw.Labels))
		for k, v := range raw.Labels {
			content.Labels[k] = v
		}
	}

	if len(raw.Replies) > 0 {
		content.Thread = make([]core.ThreadEntry, len(raw.Replies))
		for i, reply := range raw.Replies {
			content.Thread[i] = core.ThreadEntry{
				Author:   reply.Author,
				Body:     reply.Body,
				PostedAt: reply.PostedAt.UTC(),
			}
		}
		sort.SliceStable(content.Thread, func(i, j int) bool {
			a, b := content.Thread[i], content.Thread[j]
			if !a.PostedAt.Equal(b.PostedAt) {
				return a.PostedAt.Before(b.PostedAt)
			}
			if a.Author != b.Author {
				return a.Author < b.Author
			}
			return a.Body < b.Body
		})
	}

	if len(raw.Attachments) > 0 {
		content.Attachments = make([]core.AttachmentMeta, len(raw.Attachments))
		for i, att := range raw.Attachments {
			content.Attachments[i] = core.AttachmentMeta{
				Name:        att.Name,
				ContentType: att.ContentType,
				Size:        att.Size,
			}
		}
		sort.SliceStable(content.Attachments, func(i, j int) bool {
			return content.Attachments[i].Name < content.Attachments[j].Name
		})
	}

	// CreatedAt/UpdatedAt stay zero: the record store owns them.
	return &core.IntegratedObject{
		Key:         key,
		Content:     content,
		ContentHash: core.ContentHash(key, &content),
		RawPayload:  raw.Payload,
		IndexState:  core.IndexStatePending,
	}, nil
}
