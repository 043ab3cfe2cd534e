package outbox

import (
	"time"

	"media-prep/internal/sending"
	"media-prep/internal/tasks"
)

// Task states reported by Status.
const (
	StatePrepared = "prepared"
	StateFailed   = "failed"
)

// Part kinds stored in media_parts.
const (
	PartFile  = "file"
	PartThumb = "thumb"
)

// PreparedMedia is a confirmed result as stored in the outbox.
type PreparedMedia struct {
	UUID       string              `json:"uuid"`
	TaskID     tasks.ID            `json:"taskId"`
	MediaID    uint64              `json:"mediaId,string"`
	Peer       string              `json:"peer"`
	ReplyTo    int64               `json:"replyTo,omitempty"`
	Type       string              `json:"type"`
	Filename   string              `json:"filename"`
	Mime       string              `json:"mime"`
	Size       int64               `json:"size"`
	MD5        string              `json:"md5"`
	PartCount  int                 `json:"partCount"`
	ThumbName  string              `json:"thumbName,omitempty"`
	ThumbMD5   string              `json:"thumbMd5,omitempty"`
	ThumbParts int                 `json:"thumbParts"`
	Caption    string              `json:"caption,omitempty"`
	GroupID    uint64              `json:"groupId,string,omitempty"`
	Attributes []EncodedAttribute  `json:"attributes,omitempty"`
	PhotoSizes []sending.PhotoSize `json:"photoSizes,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Failure is a task that could not be sent.
type Failure struct {
	UUID      string    `json:"uuid"`
	TaskID    tasks.ID  `json:"taskId"`
	Filename  string    `json:"filename"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is the outcome of a task as far as the outbox knows.
type Status struct {
	TaskID   tasks.ID       `json:"taskId"`
	State    string         `json:"state"`
	Prepared *PreparedMedia `json:"prepared,omitempty"`
	Failure  *Failure       `json:"failure,omitempty"`
}

// AlbumRecord is a completed album.
type AlbumRecord struct {
	GroupID   uint64              `json:"groupId,string"`
	Items     []sending.AlbumItem `json:"items"`
	CreatedAt time.Time           `json:"createdAt"`
}

// EncodedAttribute is the stored form of a sending.Attribute.
type EncodedAttribute struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
}

func encodeAttributes(attrs []sending.Attribute) []EncodedAttribute {
	out := make([]EncodedAttribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, EncodedAttribute{Kind: a.AttributeKind(), Value: a})
	}
	return out
}
