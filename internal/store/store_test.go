package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var base = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func objAt(name string, minutes int) Object {
	return Object{Name: name, LastModified: base.Add(time.Duration(minutes) * time.Minute)}
}

func TestSelectRecent_NewestFirstAndBounded(t *testing.T) {
	var objs []Object
	for i := 0; i < 10; i++ {
		objs = append(objs, objAt(fmt.Sprintf("img_%02d.jpg", i), i))
	}
	// shuffle-ish input order
	objs[0], objs[7] = objs[7], objs[0]
	objs[3], objs[9] = objs[9], objs[3]

	got := SelectRecent(objs, GalleryN)
	if len(got) != GalleryN {
		t.Fatalf("len = %d, want %d", len(got), GalleryN)
	}
	for i, o := range got {
		want := fmt.Sprintf("img_%02d.jpg", 9-i)
		if o.Name != want {
			t.Errorf("got[%d] = %s, want %s", i, o.Name, want)
		}
	}
}

func TestSelectRecent_DoesNotModifyInput(t *testing.T) {
	objs := []Object{objAt("a", 1), objAt("b", 2)}
	SelectRecent(objs, 1)
	if objs[0].Name != "a" || objs[1].Name != "b" {
		t.Errorf("input reordered: %+v", objs)
	}
}

func TestSelectRecent_EdgeCases(t *testing.T) {
	cases := []struct {
		name string
		objs []Object
		n    int
		want int
	}{
		{"empty", nil, 6, 0},
		{"fewer_than_n", []Object{objAt("a", 0), objAt("b", 1)}, 6, 2},
		{"zero_n", []Object{objAt("a", 0)}, 0, 0},
		{"negative_n", []Object{objAt("a", 0)}, -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectRecent(tc.objs, tc.n)
			if got == nil {
				t.Fatal("SelectRecent returned nil, want empty slice")
			}
			if len(got) != tc.want {
				t.Errorf("len = %d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestSelectRecent_TieBrokenByName(t *testing.T) {
	got := SelectRecent([]Object{objAt("a", 0), objAt("c", 0), objAt("b", 0)}, 3)
	if got[0].Name != "c" || got[1].Name != "b" || got[2].Name != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestMemory_UploadListGet(t *testing.T) {
	m := NewMemory()
	tick := 0
	m.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	ctx := context.Background()
	for _, name := range []string{"one.jpg", "two.jpg", "three.jpg"} {
		if err := m.Upload(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Upload(%s): %v", name, err)
		}
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	data, ok := m.Get("two.jpg")
	if !ok || string(data) != "two.jpg" {
		t.Errorf("Get(two.jpg) = %q, %v", data, ok)
	}

	recent, err := ListRecent(ctx, m, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Name != "three.jpg" || recent[1].Name != "two.jpg" {
		t.Errorf("recent = %+v, want three.jpg, two.jpg", recent)
	}
	if recent[0].Size != int64(len("three.jpg")) {
		t.Errorf("size = %d", recent[0].Size)
	}
}

func TestMemory_UploadCopiesData(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Upload(context.Background(), "x.jpg", buf)
	buf[0] = 'z'
	if data, _ := m.Get("x.jpg"); string(data) != "abc" {
		t.Errorf("stored data changed with caller buffer: %q", data)
	}
}

func TestMemory_CancelledUpload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Upload(ctx, "x.jpg", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestUnavailable(t *testing.T) {
	reason := errors.New("dial tcp: connection refused")
	u := Unavailable{Reason: reason}

	err := u.Upload(context.Background(), "x.jpg", nil)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, reason) {
		t.Errorf("Upload err = %v, want ErrUnavailable wrapping reason", err)
	}
	if _, err := u.List(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("List err = %v", err)
	}
	if err := (Unavailable{}).Upload(context.Background(), "x", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("zero Unavailable err = %v", err)
	}
}

func TestListRecent_PropagatesError(t *testing.T) {
	if _, err := ListRecent(context.Background(), Unavailable{}, GalleryN); err == nil {
		t.Error("expected error, got nil")
	}
}
