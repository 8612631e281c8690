package draft

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
)

// Status is the lifecycle position of the active draft.
type Status string

const (
	StatusEmpty      Status = "EMPTY"
	StatusGenerating Status = "GENERATING"
	StatusReady      Status = "READY"
	StatusPublishing Status = "PUBLISHING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

// Stage says which half of the lifecycle produced a failure.
type Stage string

const (
	StageGeneration Stage = "generation"
	StagePublish    Stage = "publish"
)

// Failure describes why the draft is FAILED.
type Failure struct {
	Stage   Stage        `json:"stage"`
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
}

// Draft is a read-only view of the active draft. Image is a private copy.
type Draft struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Text      string         `json:"text"`
	Image     *content.Image `json:"image,omitempty"`
	Status    Status         `json:"status"`
	Failure   *Failure       `json:"failure,omitempty"`
	PostID    string         `json:"post_id,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HasText reports whether the draft carries non-blank text.
func (d Draft) HasText() bool { return strings.TrimSpace(d.Text) != "" }

// Manager owns the single active draft. All transitions go through its
// methods; generation and publishing are mutually exclusive and a second
// request while one is in flight fails with KindConcurrencyConflict.
type Manager struct {
	mu  sync.Mutex
	cur Draft
	now func() time.Time
}

func NewManager() *Manager {
	m := &Manager{now: time.Now}
	m.cur = Draft{Status: StatusEmpty, UpdatedAt: m.now()}
	return m
}

// Current returns a copy of the active draft.
func (m *Manager) Current() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// StartGeneration discards the current draft and begins a fresh one for topic.
// It returns the id the caller must pass to CompleteGeneration/FailGeneration.
func (m *Manager) StartGeneration(topic string) (string, error) {
	topic, err := content.ParseTopic(topic)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.busyLocked("start generation"); err != nil {
		return "", err
	}
	m.cur = Draft{
		ID:        uuid.NewString(),
		Topic:     topic,
		Status:    StatusGenerating,
		UpdatedAt: m.now(),
	}
	return m.cur.ID, nil
}

// CompleteGeneration stores the generated text and image. The draft becomes
// READY only when the text is non-blank and the image is usable; otherwise
// it is FAILED with whatever was supplied kept.
func (m *Manager) CompleteGeneration(id, text string, img *content.Image) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expectLocked(id, StatusGenerating, "complete generation"); err != nil {
		return Draft{}, err
	}
	m.cur.Text = text
	if img.Valid() {
		m.cur.Image = img.Clone()
	}
	switch {
	case strings.TrimSpace(text) == "":
		m.failLocked(StageGeneration, failure.New(failure.KindValidation, "complete generation", "generated text is empty"))
	case !img.Valid():
		m.failLocked(StageGeneration, failure.New(failure.KindValidation, "complete generation", "generated image is missing"))
	default:
		m.cur.Status = StatusReady
		m.cur.Failure = nil
		m.cur.UpdatedAt = m.now()
	}
	return m.snapshotLocked(), nil
}

// FailGeneration marks the run FAILED. text is the last successfully produced
// text (possibly empty); the image stays absent.
func (m *Manager) FailGeneration(id, text string, cause error) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expectLocked(id, StatusGenerating, "fail generation"); err != nil {
		return Draft{}, err
	}
	m.cur.Text = text
	m.cur.Image = nil
	m.failLocked(StageGeneration, cause)
	return m.snapshotLocked(), nil
}

// SetText replaces the draft text. Allowed on READY drafts and on FAILED
// drafts that still carry text. Status and image are untouched.
func (m *Manager) SetText(text string) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.cur.Status {
	case StatusReady:
	case StatusFailed:
		if !m.cur.HasText() {
			return Draft{}, failure.New(failure.KindValidation, "set text", "failed draft has no text to edit")
		}
	case StatusGenerating, StatusPublishing:
		// Edits during a publish are refused so the caller knows they were not published.
		return Draft{}, failure.New(failure.KindConcurrencyConflict, "set text", "draft is %s", m.cur.Status)
	default:
		return Draft{}, failure.New(failure.KindValidation, "set text", "draft is %s", m.cur.Status)
	}
	m.cur.Text = text
	m.cur.UpdatedAt = m.now()
	return m.snapshotLocked(), nil
}

// BeginPublish moves a publishable draft to PUBLISHING and returns the
// snapshot to publish. A draft is publishable when it is READY, or FAILED by
// an earlier publish attempt, with non-blank text and an image.
func (m *Manager) BeginPublish() (content.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.busyLocked("begin publish"); err != nil {
		return content.Snapshot{}, err
	}
	publishable := m.cur.Status == StatusReady ||
		(m.cur.Status == StatusFailed && m.cur.Failure != nil && m.cur.Failure.Stage == StagePublish)
	if !publishable {
		return content.Snapshot{}, failure.New(failure.KindValidation, "begin publish", "draft is %s, not ready to publish", m.cur.Status)
	}
	if !m.cur.HasText() {
		return content.Snapshot{}, failure.New(failure.KindValidation, "begin publish", "draft text is empty")
	}
	if !m.cur.Image.Valid() {
		return content.Snapshot{}, failure.New(failure.KindValidation, "begin publish", "draft has no image")
	}
	m.cur.Status = StatusPublishing
	m.cur.UpdatedAt = m.now()
	return content.Snapshot{
		DraftID: m.cur.ID,
		Text:    m.cur.Text,
		Image:   *m.cur.Image.Clone(),
	}, nil
}

// CompletePublish records the outcome of the attempt started by BeginPublish.
func (m *Manager) CompletePublish(id string, res content.PublishResult) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expectLocked(id, StatusPublishing, "complete publish"); err != nil {
		return Draft{}, err
	}
	if res.OK() {
		m.cur.Status = StatusPublished
		m.cur.PostID = res.PostID
		m.cur.Failure = nil
		m.cur.UpdatedAt = m.now()
	} else {
		m.failLocked(StagePublish, res.Err())
	}
	return m.snapshotLocked(), nil
}

func (m *Manager) busyLocked(op string) error {
	if m.cur.Status == StatusGenerating || m.cur.Status == StatusPublishing {
		return failure.New(failure.KindConcurrencyConflict, op, "draft is %s", m.cur.Status)
	}
	return nil
}

func (m *Manager) expectLocked(id string, want Status, op string) error {
	if m.cur.ID != id {
		return failure.New(failure.KindConcurrencyConflict, op, "draft %s is no longer active", id)
	}
	if m.cur.Status != want {
		return failure.New(failure.KindValidation, op, "draft is %s, want %s", m.cur.Status, want)
	}
	return nil
}

func (m *Manager) failLocked(stage Stage, cause error) {
	kind := failure.KindOf(cause)
	if kind == "" {
		kind = failure.KindUnavailable
	}
	m.cur.Status = StatusFailed
	m.cur.Failure = &Failure{Stage: stage, Kind: kind, Message: failure.Message(cause)}
	m.cur.UpdatedAt = m.now()
}

func (m *Manager) snapshotLocked() Draft {
	d := m.cur
	d.Image = m.cur.Image.Clone()
	if m.cur.Failure != nil {
		f := *m.cur.Failure
		d.Failure = &f
	}
	return d
}
