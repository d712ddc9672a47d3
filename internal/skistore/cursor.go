package skistore

import (
	"context"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// SliceCursor is a Cursor over an in-memory slice, shared by the postgres
// and sqlite stores (which load a query's full result into memory) and by
// tests. It applies no batch-size cap, and no store query takes an offset.
type SliceCursor struct {
	objects []model.Object
	pos     int
	err     error
}

// NewSliceCursor wraps objects in a Cursor.
func NewSliceCursor(objects []model.Object) *SliceCursor {
	return &SliceCursor{objects: objects, pos: -1}
}

func (c *SliceCursor) Next(_ context.Context) bool {
	if c.err != nil {
		return false
	}
	c.pos++
	return c.pos < len(c.objects)
}

func (c *SliceCursor) Object() model.Object {
	if c.pos < 0 || c.pos >= len(c.objects) {
		return model.Object{}
	}
	return c.objects[c.pos]
}

func (c *SliceCursor) Err() error { return c.err }

func (c *SliceCursor) Close() error { return nil }

// Collect drains cur into a slice and closes it. Phase drivers use this
// when a pass needs the whole ski-area set in memory rather than streaming
// it one record at a time.
func Collect(ctx context.Context, cur Cursor) ([]model.Object, error) {
	defer cur.Close()
	var objects []model.Object
	for cur.Next(ctx) {
		objects = append(objects, cur.Object())
	}
	return objects, cur.Err()
}
