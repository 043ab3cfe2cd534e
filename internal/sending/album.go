package sending

import (
	"math/rand/v2"
	"strings"
	"sync"

	"media-prep/internal/tasks"

	"github.com/samber/lo"
)

// Captions stores the text of local messages. The first message of an
// album owns the album caption.
type Captions interface {
	Caption(msgID int64) string
	SetCaption(msgID int64, text string)
}

// InputMedia is an uploaded file referenced by an album item.
type InputMedia struct {
	ID   uint64        `json:"id"`
	Type SendMediaType `json:"type"`
}

// SingleMedia is the payload of one album item once its file is uploaded.
type SingleMedia struct {
	Media    InputMedia `json:"media"`
	RandomID uint64     `json:"randomId"`
	Caption  string     `json:"caption"`
}

// AlbumItem is one message of an album.
type AlbumItem struct {
	TaskID tasks.ID     `json:"taskId"`
	MsgID  int64        `json:"msgId"`
	Media  *SingleMedia `json:"media,omitempty"`
}

// Album groups the messages of one multi-file send. It is safe for
// concurrent use.
type Album struct {
	groupID  uint64
	captions Captions

	mu    sync.Mutex
	items []AlbumItem
}

// NewAlbum returns an empty album with a random group id.
func NewAlbum(captions Captions) *Album {
	return &Album{groupID: rand.Uint64(), captions: captions}
}

// GroupID returns the id shared by all items.
func (a *Album) GroupID() uint64 {
	return a.groupID
}

// AddItem appends a message prepared by the given task.
func (a *Album) AddItem(taskID tasks.ID, msgID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, AlbumItem{TaskID: taskID, MsgID: msgID})
}

// Items returns a snapshot of the items in order.
func (a *Album) Items() []AlbumItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.Map(a.items, func(item AlbumItem, _ int) AlbumItem {
		if item.Media != nil {
			m := *item.Media
			item.Media = &m
		}
		return item
	})
}

// Len returns the number of items.
func (a *Album) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Ready reports whether every item has its media.
func (a *Album) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items) > 0 && lo.EveryBy(a.items, func(item AlbumItem) bool {
		return item.Media != nil
	})
}

// FillMedia attaches uploaded media to the item for msgID. Media can be
// attached only once.
func (a *Album) FillMedia(msgID int64, media InputMedia, randomID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOf(msgID)
	if i < 0 {
		return ErrItemNotFound
	}
	if a.items[i].Media != nil {
		return ErrMediaAlreadySet
	}
	a.items[i].Media = &SingleMedia{
		Media:    media,
		RandomID: randomID,
		Caption:  a.caption(msgID),
	}
	return nil
}

// RefreshMediaCaption rebuilds the item's media with the current caption of
// its message. Items without media are left alone.
func (a *Album) RefreshMediaCaption(msgID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshLocked(msgID)
}

func (a *Album) refreshLocked(msgID int64) error {
	i := a.indexOf(msgID)
	if i < 0 {
		return ErrItemNotFound
	}
	if a.items[i].Media == nil {
		return nil
	}
	m := *a.items[i].Media
	m.Caption = a.caption(msgID)
	a.items[i].Media = &m
	return nil
}

// RemoveItem drops the item for msgID. When it was the first of several
// items its caption moves to the new first item.
func (a *Album) RemoveItem(msgID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOf(msgID)
	if i < 0 {
		return ErrItemNotFound
	}
	moveCaption := len(a.items) > 1 && i == 0
	a.items = append(a.items[:i], a.items[i+1:]...)

	if moveCaption && a.captions != nil {
		first := a.items[0].MsgID
		a.captions.SetCaption(first, a.captions.Caption(msgID))
		return a.refreshLocked(first)
	}
	return nil
}

// RemoveTask drops the item prepared by taskID without touching captions.
// It reports whether an item was removed.
func (a *Album) RemoveTask(taskID tasks.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, i, found := lo.FindIndexOf(a.items, func(item AlbumItem) bool {
		return item.TaskID == taskID
	})
	if !found {
		return false
	}
	a.items = append(a.items[:i], a.items[i+1:]...)
	return true
}

// MsgIDForTask returns the message prepared by taskID.
func (a *Album) MsgIDForTask(taskID tasks.ID) (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	item, found := lo.Find(a.items, func(item AlbumItem) bool {
		return item.TaskID == taskID
	})
	return item.MsgID, found
}

func (a *Album) indexOf(msgID int64) int {
	_, i, found := lo.FindIndexOf(a.items, func(item AlbumItem) bool {
		return item.MsgID == msgID
	})
	if !found {
		return -1
	}
	return i
}

func (a *Album) caption(msgID int64) string {
	if a.captions == nil {
		return ""
	}
	return strings.TrimSpace(a.captions.Caption(msgID))
}

// Messages is an in-memory Captions store that also hands out local
// message ids.
type Messages struct {
	mu       sync.Mutex
	lastID   int64
	captions map[int64]string
}

// NewMessages returns an empty store.
func NewMessages() *Messages {
	return &Messages{captions: make(map[int64]string)}
}

// Add stores a new message and returns its id.
func (m *Messages) Add(caption string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	m.captions[m.lastID] = caption
	return m.lastID
}

// Caption implements Captions.
func (m *Messages) Caption(msgID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captions[msgID]
}

// SetCaption implements Captions.
func (m *Messages) SetCaption(msgID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captions[msgID] = text
}
