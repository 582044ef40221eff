package store

import (
	"slices"

	"github.com/reclaim-app/reclaim/internal/model"
)

func cloneItem(in *model.Item) *model.Item {
	out := *in
	out.AI.ImageEmbedding = slices.Clone(in.AI.ImageEmbedding)
	out.AI.TextEmbedding = slices.Clone(in.AI.TextEmbedding)
	out.AI.DetectedObjects = slices.Clone(in.AI.DetectedObjects)
	return &out
}

func cloneClaim(in *model.Claim) *model.Claim {
	out := *in
	out.Proofs = slices.Clone(in.Proofs)
	if in.FraudRisk != nil {
		fr := *in.FraudRisk
		fr.Flags = slices.Clone(in.FraudRisk.Flags)
		out.FraudRisk = &fr
	}
	return &out
}

func cloneMatch(in *model.MatchRecord) *model.MatchRecord {
	out := *in
	if in.ReviewedAt != nil {
		t := *in.ReviewedAt
		out.ReviewedAt = &t
	}
	return &out
}
