// Package categorize rolls reconciled fields up into domain buckets by
// canonical key prefix. Every field lands in exactly one bucket; fields
// without a canonical key go to the "other" bucket, never dropped.
package categorize

import (
	"github.com/formscan/formscan/internal/types"
)

// prefixBuckets maps canonical key prefixes to their bucket.
var prefixBuckets = map[string]types.Bucket{
	"credentials": types.BucketCredentials,
	"equipment":   types.BucketEquipment,
	"scheduling":  types.BucketScheduling,
	"employment":  types.BucketEmployment,
}

// BucketFor returns the bucket a canonical key rolls up into.
func BucketFor(key types.CanonicalKey) types.Bucket {
	if b, ok := prefixBuckets[key.Prefix()]; ok && key != "" {
		return b
	}
	return types.BucketOther
}

// Buckets groups fields by bucket, preserving input (page) order inside
// each group.
func Buckets(fields []types.ReconciledField) map[types.Bucket][]types.ReconciledField {
	out := make(map[types.Bucket][]types.ReconciledField)
	for _, f := range fields {
		b := BucketFor(f.Key)
		out[b] = append(out[b], f)
	}
	return out
}
