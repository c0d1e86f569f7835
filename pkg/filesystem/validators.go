package filesystem

// BrowseQuery contains query parameters for the archive browse endpoint.
// Path is relative to the archive root.
type BrowseQuery struct {
	Path   string `query:"path" json:"path,omitempty"`
	Limit  int    `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=1000"`
	Offset int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search string `query:"search" json:"search,omitempty"`
}

// Entry is one directory entry inside the archive.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// BrowseResponse contains the response for the browse endpoint.
type BrowseResponse struct {
	CurrentPath string  `json:"current_path"`
	ParentPath  *string `json:"parent_path,omitempty"`
	Entries     []Entry `json:"entries"`
	Total       int     `json:"total"`
	HasMore     bool    `json:"has_more"`
}
