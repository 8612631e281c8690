package content

import (
	"bytes"
	"strings"

	"auto_linkedin_post_publisher/failure"
)

// Snippet is one search hit used to ground the generated post.
type Snippet struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Link    string `json:"link"`
}

// SearchContext is the ordered (most relevant first) set of snippets for a topic.
type SearchContext struct {
	Topic    string    `json:"topic"`
	Snippets []Snippet `json:"snippets"`
}

// Empty reports whether the search produced no grounding material.
func (c SearchContext) Empty() bool { return len(c.Snippets) == 0 }

// GeneratedText is the raw model output before normalization.
type GeneratedText struct {
	Content     string `json:"content"`
	Model       string `json:"model"`
	TotalTokens int64  `json:"total_tokens"`
}

// Image is a generated picture ready for upload.
type Image struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	// SourceURL is where the generator hosted the image, if anywhere.
	SourceURL string `json:"source_url,omitempty"`
}

// Valid reports whether the image can be uploaded.
func (i *Image) Valid() bool {
	return i != nil && len(i.Data) > 0 && i.ContentType != ""
}

// Clone returns a deep copy so the payload cannot be changed through the original.
func (i *Image) Clone() *Image {
	if i == nil {
		return nil
	}
	c := *i
	c.Data = bytes.Clone(i.Data)
	return &c
}

// Snapshot is the immutable text and image handed to the publisher.
type Snapshot struct {
	DraftID string
	Text    string
	Image   Image
}

// PublishResult records the outcome of exactly one publish attempt.
type PublishResult struct {
	PostID   string       `json:"post_id,omitempty"`
	AssetURN string       `json:"asset_urn,omitempty"`
	Kind     failure.Kind `json:"error_kind,omitempty"`
	// Cause is the upstream kind behind Kind, e.g. UpstreamTimeout behind AssetUploadFailed.
	Cause   failure.Kind `json:"cause_kind,omitempty"`
	Message string       `json:"error,omitempty"`
}

// OK reports whether the post was created.
func (r PublishResult) OK() bool { return r.Kind == "" && r.PostID != "" }

// Err returns the failure as an error, nil on success.
func (r PublishResult) Err() error {
	if r.OK() {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = failure.KindPostCreationFailed
	}
	return failure.New(kind, "publish", "%s", r.Message)
}

// ParseTopic trims the topic and rejects empty input.
func ParseTopic(raw string) (string, error) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return "", failure.New(failure.KindValidation, "topic", "topic must not be empty")
	}
	return topic, nil
}
