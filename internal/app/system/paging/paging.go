// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of rows in one page of a list endpoint.
const PageSize = 50

// Direction is the direction a keyset page is read in.
type Direction int

const (
	Forward  Direction = iota // ascending, cursor is exclusive lower bound
	Backward                  // descending, cursor is exclusive upper bound
)

// Params are the paging query parameters of a list request:
// ?after=<cursor> for the next page, ?before=<cursor> for the previous one,
// and ?start=<n>, the 1-based position of the first row, used only for
// display ranges.
type Params struct {
	Before string
	After  string
	Start  int
}

// ParseParams reads Params from r. An invalid start becomes 1.
func ParseParams(r *http.Request) Params {
	p := Params{
		Before: strings.TrimSpace(query.Get(r, "before")),
		After:  strings.TrimSpace(query.Get(r, "after")),
		Start:  1,
	}
	if n, err := strconv.Atoi(query.Get(r, "start")); err == nil && n > 0 {
		p.Start = n
	}
	return p
}

// Keyset is a decoded keyset position over (sortField, _id).
type Keyset struct {
	Direction Direction
	Cursor    *wafflemongo.Cursor
}

// Keyset decodes the cursor in p. An undecodable cursor reads the first page.
func (p Params) Keyset() Keyset {
	ks := Keyset{Direction: Forward}
	raw := p.After
	if p.Before != "" {
		ks.Direction = Backward
		raw = p.Before
	}
	if raw != "" {
		if c, ok := wafflemongo.DecodeCursor(raw); ok {
			ks.Cursor = &c
		}
	}
	return ks
}

func (k Keyset) order() int {
	if k.Direction == Backward {
		return -1
	}
	return 1
}

// FindOptions sorts on (sortField, _id) in the keyset direction and fetches
// one row past the page to detect whether another page follows.
func (k Keyset) FindOptions(sortField string) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: sortField, Value: k.order()}, {Key: "_id", Value: k.order()}}).
		SetLimit(int64(PageSize + 1))
}

// Window returns the filter clause that starts the page after the cursor,
// or nil on the first page.
func (k Keyset) Window(sortField string) bson.M {
	if k.Cursor == nil {
		return nil
	}
	dir := "gt"
	if k.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, k.Cursor.CI, k.Cursor.ID)
}

// Page describes a trimmed page.
type Page struct {
	HasPrev    bool   `json:"has_prev"`
	HasNext    bool   `json:"has_next"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
	RangeStart int    `json:"range_start"`
	RangeEnd   int    `json:"range_end"`
}

// Trim cuts rows fetched with FindOptions down to one page in ascending
// order and describes it. key and id extract the sort key and _id of a row.
func Trim[T any](rows *[]T, p Params, key func(T) string, id func(T) primitive.ObjectID) Page {
	var pg Page
	if p.Before != "" {
		if len(*rows) > PageSize {
			*rows = (*rows)[:PageSize]
			pg.HasPrev = true
		}
		reverse(*rows)
		pg.HasNext = true
	} else {
		if len(*rows) > PageSize {
			*rows = (*rows)[:PageSize]
			pg.HasNext = true
		}
		pg.HasPrev = p.After != ""
	}

	if n := len(*rows); n > 0 {
		first, last := (*rows)[0], (*rows)[n-1]
		pg.PrevCursor = wafflemongo.EncodeCursor(key(first), id(first))
		pg.NextCursor = wafflemongo.EncodeCursor(key(last), id(last))
		pg.RangeStart = p.Start
		pg.RangeEnd = p.Start + n - 1
	}
	return pg
}

func reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
