package store

import "testing"

func TestNewMinio_RequiresBucket(t *testing.T) {
	if _, err := NewMinio(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected error for empty bucket, got nil")
	}
}

func TestMinio_ObjectURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  MinioConfig
		want string
	}{
		{
			name: "endpoint_http",
			cfg:  MinioConfig{Endpoint: "localhost:9000", Bucket: "photos"},
			want: "http://localhost:9000/photos/img_1.jpg",
		},
		{
			name: "endpoint_https",
			cfg:  MinioConfig{Endpoint: "s3.example.com", Bucket: "photos", UseSSL: true},
			want: "https://s3.example.com/photos/img_1.jpg",
		},
		{
			name: "public_base",
			cfg:  MinioConfig{Endpoint: "localhost:9000", Bucket: "photos", PublicBaseURL: "https://cdn.example.com/pics/"},
			want: "https://cdn.example.com/pics/img_1.jpg",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewMinio(tc.cfg)
			if err != nil {
				t.Fatalf("NewMinio: %v", err)
			}
			if got := m.ObjectURL("img_1.jpg"); got != tc.want {
				t.Errorf("ObjectURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestImplementsStore(t *testing.T) {
	var _ Store = NewMemory()
	var _ Store = (*Minio)(nil)
	var _ Store = Unavailable{}
}
