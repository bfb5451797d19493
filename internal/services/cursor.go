package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// listCursor marks the last row of a page in (created_at DESC, id DESC) order.
type listCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(c listCursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(value string) (listCursor, error) {
	var c listCursor
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return c, errors.New("cursor is incomplete")
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
