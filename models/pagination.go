package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PageInfo struct {
	EndCursor   string `json:"end_cursor"`
	HasNextPage bool   `json:"has_next_page"`
}

// EncodeEventCursor packs an event's sort key (date, id) into an opaque cursor.
func EncodeEventCursor(eventDate time.Time, id int) string {
	cursor := fmt.Sprintf("%s|%d", eventDate.Format(time.DateOnly), id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// DecodeEventCursor reverses EncodeEventCursor. ok is false for an empty or
// malformed cursor.
func DecodeEventCursor(cursor string) (eventDate time.Time, id int, ok bool) {
	if cursor == "" {
		return time.Time{}, 0, false
	}
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, false
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return time.Time{}, 0, false
	}
	eventDate, err = time.ParseInLocation(time.DateOnly, parts[0], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	id, err = strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, 0, false
	}
	return eventDate, id, true
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	return min(limit, maxPageLimit)
}
