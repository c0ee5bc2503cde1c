package attachments

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://coach-attachments/c1/nota.ogg", "coach-attachments", "c1/nota.ogg", false},
		{"gs://bucket/deep/path/file.pdf", "bucket", "deep/path/file.pdf", false},
		{"gs://bucket-only", "", "", true},
		{"gs://bucket/", "", "", true},
		{"https://storage.googleapis.com/x/y", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		bucket, object, err := splitURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitURI(%q) err = %v, wantErr %v", tt.uri, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("splitURI(%q) = %q/%q, want %q/%q", tt.uri, bucket, object, tt.bucket, tt.object)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/c1/abc-nota.ogg", "abc-nota.ogg"},
		{"gs://bucket/deep/path/extracto.pdf", "extracto.pdf"},
		{"gs://bucket-only", "bucket-only"},
	}
	for _, tt := range tests {
		if got := Filename(tt.uri); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
