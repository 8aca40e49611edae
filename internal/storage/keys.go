package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewObjectKey returns a unique, date partitioned key under prefix, e.g.
// "uploads/2025/3/14/6f1c...". An empty prefix yields a key starting with
// the year.
func (c *Client) NewObjectKey(prefix string) string {
	d := c.now()
	key := fmt.Sprintf("%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
