package objectkey

import (
	"strings"
	"testing"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()
	id := simpleasset.MustParseID("123e4567-e89b-12d3-a456-426614174000")
	hash := simpleasset.Hash("sha256:abcdef0123")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"artifact", gen.ArtifactKey(id), "artifacts/123e4567e89b12d3a456426614174000"},
		{"meta", gen.MetaKey(id), "artifacts/123e4567e89b12d3a456426614174000.meta"},
		{"index", gen.IndexKey(hash, "mesh"), "index/sha256/abcdef0123.mesh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.got)
			}
		})
	}
}

func TestGitLikeGenerator(t *testing.T) {
	gen := NewGitLikeGenerator()
	id := simpleasset.MustParseID("123e4567-e89b-12d3-a456-426614174000")
	hash := simpleasset.Hash("blake3:abcdef0123")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"artifact shards on id tail", gen.ArtifactKey(id), "artifacts/00/123e4567e89b12d3a456426614174000"},
		{"meta", gen.MetaKey(id), "artifacts/00/123e4567e89b12d3a456426614174000.meta"},
		{"index shards on digest head", gen.IndexKey(hash, "Audio.PCM"), "index/blake3/ab/abcdef0123.audio_pcm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.got)
			}
		})
	}
}

func TestGitLikeGeneratorShardLength(t *testing.T) {
	gen := &GitLikeGenerator{ShardLength: 4}
	id := simpleasset.MustParseID("123e4567-e89b-12d3-a456-426614174abc")

	key := gen.ArtifactKey(id)
	if !strings.HasPrefix(key, "artifacts/4abc/") {
		t.Errorf("expected 4-character shard, got %s", key)
	}
}

func TestIDFromMetaKey(t *testing.T) {
	id := simpleasset.NewID()

	for _, gen := range []Generator{NewFlatGenerator(), NewGitLikeGenerator()} {
		got, ok := IDFromMetaKey(gen.MetaKey(id))
		if !ok || got != id {
			t.Errorf("expected %s, got %s (ok=%v)", id, got, ok)
		}
	}

	invalid := []string{
		"artifacts/00/123e4567e89b12d3a456426614174000",
		"artifacts/00/nothex.meta",
		"artifacts/00/zz3e4567e89b12d3a456426614174000.meta",
	}
	for _, key := range invalid {
		if _, ok := IDFromMetaKey(key); ok {
			t.Errorf("expected %s to be rejected", key)
		}
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mesh", "mesh"},
		{"", "_"},
		{"a/b", "a_b"},
		{"Texture.RGBA", "texture_rgba"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizePathComponent(tt.input); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
