package naming

import (
	"regexp"
	"strings"
)

type MediaClass string

const (
	MediaDisk     MediaClass = "disk"
	MediaTape     MediaClass = "tape"
	MediaROM      MediaClass = "rom"
	MediaSnapshot MediaClass = "snapshot"
	MediaUnknown  MediaClass = "unknown"
)

var mediaFormats = map[MediaClass][]string{
	MediaDisk:     {"dsk", "trd", "scl", "fdi", "udi", "td0", "d80", "mgt", "opd", "mbd", "img"},
	MediaTape:     {"tzx", "tap", "mdr", "p", "o"},
	MediaROM:      {"bin", "rom", "spg", "nex", "snx", "tar"},
	MediaSnapshot: {"sna", "szx", "dck", "z80", "slt"},
}

var mediaByExt = func() map[string]MediaClass {
	m := map[string]MediaClass{}
	for class, exts := range mediaFormats {
		for _, ext := range exts {
			m[ext] = class
		}
	}
	return m
}()

// ClassifyMedia returns the media class of a file extension.
func ClassifyMedia(ext string) MediaClass {
	if class, ok := mediaByExt[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return class
	}
	return MediaUnknown
}

// Label is the word used in the "(Disk 1 of 2)" media part.
func (m MediaClass) Label() string {
	switch m {
	case MediaDisk:
		return "Disk"
	case MediaTape:
		return "Tape"
	default:
		return "File"
	}
}

var (
	sideLetter = regexp.MustCompile(`(?i)\bSide\s*([A-Z])\b`)
	sideNumber = regexp.MustCompile(`(?i)\bSide\s*(\d+)`)
	partNumber = regexp.MustCompile(`(?i)\bPart\s*(\d+)`)
)

// SidePart extracts "Side A", "Side 2" or "Part 3" from an original filename.
func SidePart(originalFileName string) string {
	if m := sideLetter.FindStringSubmatch(originalFileName); m != nil {
		return "Side " + strings.ToUpper(m[1])
	}
	if m := sideNumber.FindStringSubmatch(originalFileName); m != nil {
		return "Side " + m[1]
	}
	if m := partNumber.FindStringSubmatch(originalFileName); m != nil {
		return "Part " + m[1]
	}
	return ""
}
