package sdata

import (
	"testing"

	"github.com/spf13/afero"
)

const testYAML = `
collections:
  - type: BlogPost
    fields:
      - name: owner
        ref: { collection: users }
    lookups:
      - name: comments
        collection: comments
        local_field: _id
        foreign_field: post_id
  - name: users
  - name: comments
`

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(testYAML))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// collection name derived from the type name
	if _, err := s.Collection("blog_posts"); err != nil {
		t.Errorf("Collection(blog_posts) error = %v", err)
	}

	rel, err := s.Relation("blog_posts", "owner")
	if err != nil {
		t.Fatalf("Relation() error = %v", err)
	}
	if rel.Kind != KindReference || rel.Target != "users" {
		t.Errorf("Relation() = %+v", rel)
	}
}

func TestParseSchema_Invalid(t *testing.T) {
	if _, err := ParseSchema([]byte(`{not yaml`)); err == nil {
		t.Errorf("ParseSchema() should fail on bad yaml")
	}
	if _, err := ParseSchema([]byte(`collections: []`)); err == nil {
		t.Errorf("ParseSchema() should fail on empty schema")
	}
}

func TestLoadSchema(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/schema.yml", []byte(testYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSchema(fs, "/schema.yml"); err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	if _, err := LoadSchema(fs, "/missing.yml"); err == nil {
		t.Errorf("LoadSchema() should fail on a missing file")
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BlogPost", "blog_posts"},
		{"User", "users"},
		{"Category", "categories"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CollectionName(tt.in); got != tt.want {
			t.Errorf("CollectionName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
