package io

import (
	"fmt"
	"io/fs"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/objfile"
)

const (
	DRUM_SELECT = 0 // Selected track number.
	DRUM_HEAD   = 1 // Head position on the selected track.
	DRUM_DATA   = 2 // Cell under the head; access advances the head.
	DRUM_LENGTH = 3 // Length of the selected track (read-only).
	DRUM_SIZE   = 4 // Window size of a drum.

	DRUM_TRACKS               = 256
	DRUM_DEFAULT_TRACK_LENGTH = 1024
	drumTrackPattern          = `(?i)^[0-9a-f][0-9a-f]\.track$`
)

// Track is a single circular track of a drum.
type Track struct {
	Data []cell.Cell
}

// Drum represents numbered tracks of cells, providing persistent storage.
// A track is selected by writing its number to DRUM_SELECT, then accessed
// sequentially through DRUM_DATA.
type Drum struct {
	TrackLength int // Length of newly created tracks.

	Tracks   map[uint8](*Track)
	Selected uint8
	Head     int
}

var _ Peripheral = (*Drum)(nil)
var _ Peeker = (*Drum)(nil)

// Reset selects track 0 and rewinds the head. Track data is kept.
func (dr *Drum) Reset() {
	dr.selectTrack(0)
}

// length returns the length of new tracks.
func (dr *Drum) length() int {
	if dr.TrackLength <= 0 {
		return DRUM_DEFAULT_TRACK_LENGTH
	}
	return dr.TrackLength
}

// track returns the selected track, creating it if needed.
func (dr *Drum) track() *Track {
	track, ok := dr.Tracks[dr.Selected]
	if !ok {
		if dr.Tracks == nil {
			dr.Tracks = make(map[uint8](*Track))
		}
		track = &Track{Data: make([]cell.Cell, dr.length())}
		dr.Tracks[dr.Selected] = track
	}
	return track
}

func (dr *Drum) selectTrack(selected uint8) {
	dr.Selected = selected
	dr.Head = 0
	dr.track()
}

// Read returns the register at the offset.
func (dr *Drum) Read(offset int) (value cell.Cell, err error) {
	track := dr.track()

	switch offset {
	case DRUM_SELECT:
		value = cell.Cell(dr.Selected)
	case DRUM_HEAD:
		value = cell.Cell(dr.Head)
	case DRUM_DATA:
		value = track.Data[dr.Head]
		dr.advance(track)
	case DRUM_LENGTH:
		value = cell.Cell(len(track.Data))
	default:
		err = fault(ErrOffset)
	}

	return
}

// Peek returns the register at the offset, without moving the head or
// creating the selected track.
func (dr *Drum) Peek(offset int) (value cell.Cell, err error) {
	track, ok := dr.Tracks[dr.Selected]

	switch offset {
	case DRUM_SELECT:
		value = cell.Cell(dr.Selected)
	case DRUM_HEAD:
		value = cell.Cell(dr.Head)
	case DRUM_DATA:
		if ok && dr.Head < len(track.Data) {
			value = track.Data[dr.Head]
		}
	case DRUM_LENGTH:
		if ok {
			value = cell.Cell(len(track.Data))
		} else {
			value = cell.Cell(dr.length())
		}
	default:
		err = fault(ErrOffset)
	}

	return
}

// Write updates the register at the offset.
func (dr *Drum) Write(offset int, value cell.Cell) (err error) {
	track := dr.track()

	switch offset {
	case DRUM_SELECT:
		if value < 0 || value >= DRUM_TRACKS {
			err = fault(ErrTrack)
			return
		}
		dr.selectTrack(uint8(value))
	case DRUM_HEAD:
		if value < 0 || int(value) >= len(track.Data) {
			err = fault(ErrOffset)
			return
		}
		dr.Head = int(value)
	case DRUM_DATA:
		track.Data[dr.Head] = value
		dr.advance(track)
	case DRUM_LENGTH:
		err = fault(ErrReadOnly)
	default:
		err = fault(ErrOffset)
	}

	return
}

func (dr *Drum) advance(track *Track) {
	dr.Head++
	if dr.Head >= len(track.Data) {
		dr.Head = 0
	}
}

// Unmarshal loads drum tracks from a file system by scanning for track
// files matching the pattern XX.track (2 hex digits).
func (dr *Drum) Unmarshal(filesys fs.FS) (err error) {
	entries, err := fs.ReadDir(filesys, ".")
	if err != nil {
		return
	}

	re := regexp.MustCompile(drumTrackPattern)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !re.MatchString(name) {
			continue
		}
		var index uint64
		index, err = strconv.ParseUint(strings.TrimSuffix(name, ".track"), 16, 8)
		if err != nil {
			return
		}

		var data []byte
		data, err = fs.ReadFile(filesys, name)
		if err != nil {
			return
		}

		var cells []cell.Cell
		cells, err = objfile.Decode(data)
		if err != nil {
			return
		}
		if len(cells) == 0 {
			continue
		}

		if dr.Tracks == nil {
			dr.Tracks = make(map[uint8](*Track))
		}
		dr.Tracks[uint8(index)] = &Track{Data: cells}
	}

	dr.selectTrack(dr.Selected)

	return
}

// Marshal writes the drum's tracks to a file system, one XX.track file per
// track.
func (dr *Drum) Marshal(filesys CreateFS) (err error) {
	for _, index := range slices.Sorted(maps.Keys(dr.Tracks)) {
		track := dr.Tracks[index]
		name := fmt.Sprintf("%02x.track", index)

		file, err := filesys.Create(name)
		if err != nil {
			return err
		}

		_, err = file.Write(objfile.Encode(track.Data))
		if err != nil {
			file.Close()
			return err
		}

		err = file.Close()
		if err != nil {
			return err
		}
	}

	return
}
