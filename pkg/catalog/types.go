package catalog

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type Category struct {
	ID    FlexInt `json:"id"`
	Title string  `json:"title"`
}

type Product struct {
	ID             FlexInt    `json:"id"`
	Title          string     `json:"title"`
	DateModified   FlexInt    `json:"dateModified"`
	Year           FlexInt    `json:"year"`
	LegalStatus    string     `json:"legalStatus"`
	CategoriesInfo []Category `json:"categoriesInfo"`
	Languages      StringList `json:"languages"`
	Publishers     StringList `json:"publishers"`
}

// PrimaryCategory returns the first listed category, if any.
func (p *Product) PrimaryCategory() *Category {
	if len(p.CategoriesInfo) == 0 {
		return nil
	}
	return &p.CategoriesInfo[0]
}

type File struct {
	ID       FlexInt    `json:"id"`
	MD5      string     `json:"md5"`
	Type     string     `json:"type"`
	FileName FlexString `json:"fileName"`
}

type Release struct {
	ID            FlexInt    `json:"id"`
	Title         string     `json:"title"`
	DateModified  FlexInt    `json:"dateModified"`
	Languages     StringList `json:"languages"`
	Publishers    StringList `json:"publishers"`
	Year          FlexInt    `json:"year"`
	ReleaseType   string     `json:"releaseType"`
	Version       FlexString `json:"version"`
	ProdID        FlexInt    `json:"prodId"`
	Hardware      StringList `json:"hardware"`
	PlayableFiles []File     `json:"playableFiles"`
}

// FlexInt decodes a JSON number, a numeric string or null. Empty and
// non-numeric strings decode as zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WithStack(err)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.WithStack(err)
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return errors.WithStack(err)
		}
		i = int64(fl)
	}
	*f = FlexInt(i)
	return nil
}

func (f FlexInt) Int() int { return int(f) }

// Ptr returns nil for zero, which the catalog uses for "unknown".
func (f FlexInt) Ptr() *int {
	if f == 0 {
		return nil
	}
	i := int(f)
	return &i
}

// FlexString decodes a JSON string, number or null into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WithStack(err)
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string { return string(f) }

// StringList decodes either a single (possibly comma separated) string or an
// array of strings and numbers.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] != '[' {
		var s FlexString
		if err := s.UnmarshalJSON(data); err != nil {
			return err
		}
		*l = splitList(string(s))
		return nil
	}

	var raw []FlexString
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s := strings.TrimSpace(string(r)); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// String joins the list with commas, the stored form.
func (l StringList) String() string {
	return strings.Join(l, ",")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
