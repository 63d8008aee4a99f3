// Package store holds captured images in a remote object store and lists
// them back for the gallery.
package store

import (
	"context"
	"errors"
	"sort"
	"time"
)

// GalleryN is how many images the gallery shows.
const GalleryN = 6

// Object is one stored image as seen by the gallery.
type Object struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
}

// Lister lists every object of the container.
type Lister interface {
	List(ctx context.Context) ([]Object, error)
}

// Store uploads images into a single container and lists its content.
type Store interface {
	Lister
	Upload(ctx context.Context, name string, data []byte) error
}

// ListRecent returns the n most recently modified objects, newest first.
func ListRecent(ctx context.Context, s Lister, n int) ([]Object, error) {
	objs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return SelectRecent(objs, n), nil
}

// SelectRecent sorts objs by LastModified descending (name as tie-breaker)
// and keeps at most n of them. objs is not modified.
func SelectRecent(objs []Object, n int) []Object {
	if n <= 0 || len(objs) == 0 {
		return []Object{}
	}
	out := append([]Object(nil), objs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Name > out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ErrUnavailable is wrapped by Unavailable for every call.
var ErrUnavailable = errors.New("object store unavailable")

// Unavailable is the store of a device whose store failed to initialize.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Upload(context.Context, string, []byte) error { return u.err() }

func (u Unavailable) List(context.Context) ([]Object, error) { return nil, u.err() }

func (u Unavailable) err() error {
	if u.Reason == nil {
		return ErrUnavailable
	}
	return errors.Join(ErrUnavailable, u.Reason)
}
