package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voyantlabs/codectx/internal/models"
)

// Embedding models have token limits and code tokenizes poorly, so
// entity code is truncated before embedding
const maxEmbedChars = 2000

const defaultBatchSize = 64

// EmbedEntities fills the Embedding field on every entity, issuing one
// provider call per batch. A failed batch aborts the operation so the
// caller can fail the surrounding index job.
func EmbedEntities(ctx context.Context, engine Engine, entities []*models.Entity, batchSize int) error {
	if len(entities) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	batches := 0
	for start := 0; start < len(entities); start += batchSize {
		end := start + batchSize
		if end > len(entities) {
			end = len(entities)
		}
		batch := entities[start:end]

		texts := make([]string, len(batch))
		for i, entity := range batch {
			texts[i] = entityText(entity)
		}

		vectors, err := engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch %d-%d failed: %w", start, end-1, err)
		}
		for i, vec := range vectors {
			batch[i].Embedding = vec
		}
		batches++
	}

	slog.Default().Debug("embedded entities",
		"component", "embedding",
		"engine", engine.Name(),
		"entities", len(entities),
		"batches", batches,
	)

	return nil
}

// entityText is what gets embedded: the symbolic name above the code.
// File entities carry no code, so only the name contributes.
func entityText(entity *models.Entity) string {
	code := entity.Code
	if len(code) > maxEmbedChars {
		code = code[:maxEmbedChars]
	}
	if entity.Name == "" {
		return code
	}
	if code == "" {
		return entity.Name
	}
	return entity.Name + "\n" + code
}
