package ingestion

import (
	"fmt"
	"path"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/parser"
	"github.com/voyantlabs/codectx/internal/signature"
)

type entityStats struct {
	functions  int
	classes    int
	chunks     int
	duplicates int
}

// buildEntities assembles the vector rows for a parsed repository:
// one file entity per parsed file, one entity per unique function and
// class definition, and one entity per chunk. Functions and classes
// collapse through the signature store, duplicates increment the
// occurrence count without producing a row. Chunks always produce rows;
// their duplicates fold at query time against the signature counts.
func buildEntities(repoID string, files []*parser.FileResult, sigs *signature.Store) ([]*models.Entity, entityStats) {
	var entities []*models.Entity
	var stats entityStats

	for _, file := range files {
		if file.Err != nil {
			continue
		}

		entities = append(entities, fileEntity(repoID, file))

		for _, fn := range file.Functions {
			e := symbolEntity(repoID, file, models.EntityFunction, fn)
			if _, isRep := sigs.Add(*e); !isRep {
				stats.duplicates++
				continue
			}
			entities = append(entities, e)
			stats.functions++
		}
		for _, cls := range file.Classes {
			e := symbolEntity(repoID, file, models.EntityClass, cls)
			if _, isRep := sigs.Add(*e); !isRep {
				stats.duplicates++
				continue
			}
			entities = append(entities, e)
			stats.classes++
		}

		for _, chunk := range file.Chunks {
			entities = append(entities, chunkEntity(repoID, file, chunk))
			stats.chunks++
		}
	}

	return entities, stats
}

// fileEntity carries no code. Its embedding derives from the path,
// which is enough to pull the file's chunks in by neighborhood.
func fileEntity(repoID string, file *parser.FileResult) *models.Entity {
	end := file.LinesOfCode - 1
	if end < 0 {
		end = 0
	}
	return &models.Entity{
		ID:         entityID(repoID, models.EntityFile, file.FilePath, ""),
		RepoID:     repoID,
		FilePath:   file.FilePath,
		EntityType: models.EntityFile,
		Name:       path.Base(file.FilePath),
		Language:   file.Language,
		StartLine:  0,
		EndLine:    end,
	}
}

func symbolEntity(repoID string, file *parser.FileResult, typ models.EntityType, src parser.Entity) *models.Entity {
	return &models.Entity{
		ID:         entityID(repoID, typ, file.FilePath, src.Name),
		RepoID:     repoID,
		FilePath:   file.FilePath,
		EntityType: typ,
		Name:       src.Name,
		Code:       src.Code,
		Language:   file.Language,
		StartLine:  src.StartLine,
		EndLine:    src.EndLine,
	}
}

// chunkEntity names the chunk after its dominant symbol so a chunk
// holding one function carries that function's signature. Query-time
// dedup then collapses chunks exactly where index-time collapse
// removed the underlying definitions.
func chunkEntity(repoID string, file *parser.FileResult, chunk parser.Chunk) *models.Entity {
	lineRange := fmt.Sprintf("%d-%d", chunk.StartLine, chunk.EndLine)
	return &models.Entity{
		ID:         entityID(repoID, models.EntityChunk, file.FilePath, lineRange),
		RepoID:     repoID,
		FilePath:   file.FilePath,
		EntityType: models.EntityChunk,
		Name:       dominantSymbol(file, chunk),
		Code:       chunk.Code,
		Language:   file.Language,
		StartLine:  chunk.StartLine,
		EndLine:    chunk.EndLine,
		ChunkID:    file.FilePath + ":" + lineRange,
	}
}

// dominantSymbol returns the name of the function or class covering
// the most lines of the chunk, functions winning ties. Fixed chunks
// over symbol-free ranges stay unnamed.
func dominantSymbol(file *parser.FileResult, chunk parser.Chunk) string {
	best := ""
	bestLines := 0
	for _, src := range [2][]parser.Entity{file.Functions, file.Classes} {
		for _, e := range src {
			lines := overlap(chunk.StartLine, chunk.EndLine, e.StartLine, e.EndLine)
			if lines > bestLines {
				best = e.Name
				bestLines = lines
			}
		}
	}
	return best
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}

func entityID(repoID string, typ models.EntityType, filePath, qualifier string) string {
	id := repoID + ":" + string(typ) + ":" + filePath
	if qualifier != "" {
		id += ":" + qualifier
	}
	return id
}
