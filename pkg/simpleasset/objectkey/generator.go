package objectkey

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// MetaSuffix is appended to an artifact key to form its record sidecar key.
const MetaSuffix = ".meta"

// Generator defines the interface for object key generation strategies
type Generator interface {
	// ArtifactKey is where the artifact bytes live
	ArtifactKey(id simpleasset.ID) string

	// MetaKey is where the artifact record sidecar lives
	MetaKey(id simpleasset.ID) string

	// IndexKey maps a content hash and format to the ID holding it
	IndexKey(hash simpleasset.Hash, format string) string

	// ArtifactPrefix is the common prefix of every artifact and meta key
	ArtifactPrefix() string
}

// FlatGenerator provides an unsharded layout, convenient for small stores
// and for inspecting a store by hand.
//
//	artifacts/{id}
//	index/{algo}/{digest}.{format}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) ArtifactKey(id simpleasset.ID) string {
	return "artifacts/" + id.Hex()
}

func (g *FlatGenerator) MetaKey(id simpleasset.ID) string {
	return g.ArtifactKey(id) + MetaSuffix
}

func (g *FlatGenerator) IndexKey(hash simpleasset.Hash, format string) string {
	return fmt.Sprintf("index/%s/%s.%s", hash.Algorithm(), hash.Hex(), sanitizePathComponent(format))
}

func (g *FlatGenerator) ArtifactPrefix() string {
	return "artifacts/"
}

// GitLikeGenerator provides Git-style sharded storage
//
//	artifacts/{shard}/{id}
//	index/{algo}/{shard}/{digest}.{format}
//
// IDs begin with a timestamp, so artifact shards come from the random tail
// of the ID. Index shards come from the head of the digest.
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) shardLength(s string) int {
	n := g.ShardLength
	if n <= 0 {
		n = 2
	}
	if n > len(s) {
		n = len(s)
	}
	return n
}

func (g *GitLikeGenerator) ArtifactKey(id simpleasset.ID) string {
	digits := id.Hex()
	shard := digits[len(digits)-g.shardLength(digits):]
	return fmt.Sprintf("artifacts/%s/%s", shard, digits)
}

func (g *GitLikeGenerator) MetaKey(id simpleasset.ID) string {
	return g.ArtifactKey(id) + MetaSuffix
}

func (g *GitLikeGenerator) IndexKey(hash simpleasset.Hash, format string) string {
	digest := hash.Hex()
	n := g.shardLength(digest)
	return fmt.Sprintf("index/%s/%s/%s.%s", hash.Algorithm(), digest[:n], digest, sanitizePathComponent(format))
}

func (g *GitLikeGenerator) ArtifactPrefix() string {
	return "artifacts/"
}

// IDFromMetaKey recovers the ID from a meta key produced by either generator.
func IDFromMetaKey(key string) (simpleasset.ID, bool) {
	if !strings.HasSuffix(key, MetaSuffix) {
		return simpleasset.NilID, false
	}
	key = strings.TrimSuffix(key, MetaSuffix)
	digits := key[strings.LastIndex(key, "/")+1:]
	if len(digits) != 2*simpleasset.IDSize {
		return simpleasset.NilID, false
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return simpleasset.NilID, false
	}
	id, err := simpleasset.IDFromBytes(raw)
	if err != nil {
		return simpleasset.NilID, false
	}
	return id, true
}

func sanitizePathComponent(component string) string {
	if component == "" {
		return "_"
	}
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		".", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}

// Predefined generators for common use cases

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}
