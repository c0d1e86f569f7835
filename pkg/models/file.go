package models

import (
	"time"

	"github.com/uptrace/bun"
)

// File is one playable artifact of a Release. FileName is the locally
// resolved archive name and stays nil until the placement pipeline has run.
type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID               int         `bun:",pk" json:"id"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ReleaseID        int         `bun:",notnull" json:"release_id"`
	MD5              string      `bun:"md5" json:"md5"`
	Type             string      `json:"type"`
	OriginalFileName string      `json:"original_file_name"`
	FileName         *string     `json:"file_name"`
	Paths            []*FilePath `bun:"rel:has-many,join:id=file_id" json:"paths"`
}

// PathStrings returns the recorded archive-relative paths in stored order.
func (f *File) PathStrings() []string {
	out := make([]string, 0, len(f.Paths))
	for _, p := range f.Paths {
		out = append(out, p.Path)
	}
	return out
}

// FilePath is one archive-relative location of a File. All paths of a file
// hold byte-identical content.
type FilePath struct {
	bun.BaseModel `bun:"table:file_paths,alias:fp"`

	ID        string    `bun:",pk" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FileID    int       `bun:",notnull" json:"file_id"`
	Path      string    `json:"path"`
}
