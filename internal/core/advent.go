package core

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	AdventDoors       = 24
	MaxCommentLength  = 500
	adventShuffleSeed = 42
)

var (
	ErrInvalidDoor    = errors.New("invalid door")
	ErrDoorLocked     = errors.New("door cannot be opened yet")
	ErrDoorNotOpened  = errors.New("door not opened")
	ErrEmptyComment   = errors.New("empty comment")
	ErrCommentTooLong = errors.New("comment too long (max 500 characters)")
)

// DoorOpenable reports whether door d may be opened at now: only in
// December, and not before the door's day.
func DoorOpenable(d int, now time.Time) bool {
	if d < 1 || d > AdventDoors {
		return false
	}
	return now.Month() == time.December && now.Day() >= d
}

// HasOpened reports whether user opened door d.
func (p *Planning) HasOpened(user string, d int) bool {
	return slices.Contains(p.AdventDoors[user], d)
}

// OpenDoor records that user opened door d.
func (p *Planning) OpenDoor(user string, d int, now time.Time) (bool, error) {
	if d < 1 || d > AdventDoors {
		return false, ErrInvalidDoor
	}
	if !DoorOpenable(d, now) {
		return false, ErrDoorLocked
	}
	if p.HasOpened(user, d) {
		return false, nil
	}
	p.Normalize()
	doors := append(p.AdventDoors[user], d)
	sort.Ints(doors)
	p.AdventDoors[user] = doors
	return true, nil
}

// AddComment appends a comment to a door the user has opened.
func (p *Planning) AddComment(user string, d int, text string, now time.Time) error {
	if d < 1 || d > AdventDoors {
		return ErrInvalidDoor
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return ErrCommentTooLong
	}
	if !p.HasOpened(user, d) {
		return ErrDoorNotOpened
	}
	p.Normalize()
	key := strconv.Itoa(d)
	p.AdventComments[key] = append(p.AdventComments[key], Comment{
		User:      user,
		Text:      text,
		Timestamp: *NewTimestamp(now),
	})
	return nil
}

// Comments returns the comments on door d, visible only once viewer has
// opened it.
func (p *Planning) Comments(viewer string, d int) []Comment {
	if !p.HasOpened(viewer, d) {
		return nil
	}
	return p.AdventComments[strconv.Itoa(d)]
}

// DoorImages assigns an image to every door. The names are sorted first
// and then shuffled with a fixed seed, so the mapping only changes when the
// set of images changes. Fewer than 24 images yield no mapping.
func DoorImages(names []string) map[int]string {
	if len(names) < AdventDoors {
		return map[int]string{}
	}
	sorted := slices.Clone(names)
	sort.Strings(sorted)
	r := rand.New(rand.NewPCG(adventShuffleSeed, adventShuffleSeed))
	r.Shuffle(len(sorted), func(i, j int) { sorted[i], sorted[j] = sorted[j], sorted[i] })
	m := make(map[int]string, AdventDoors)
	for d := 1; d <= AdventDoors; d++ {
		m[d] = sorted[d-1]
	}
	return m
}
