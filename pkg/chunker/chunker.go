// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package chunker

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

// Chunk is one embeddable code symbol with its AST-level metadata.
type Chunk struct {
	FilePath             string
	Language             string
	ChunkType            string
	Name                 string
	ParentName           string
	QualifiedName        string
	Docstring            string
	Content              string
	LineStart            int
	LineEnd              int
	Level                int
	LineCount            int
	CyclomaticComplexity float64
	TokenEstimate        int
}

// PointID derives the stable vector-point id for a chunk, so re-runs
// of the same commit overwrite instead of duplicating.
func (c *Chunk) PointID(repositoryID, commitSHA string) string {
	sum := sha1.Sum([]byte(repositoryID + "\x00" + commitSHA + "\x00" + c.QualifiedName))
	// UUID shape keeps vector stores that require UUID point ids happy.
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// Chunker turns one source file into symbol chunks. The heuristic
// implementation below stands in where no AST service is configured.
type Chunker interface {
	Chunk(file SourceFile, content []byte) []Chunk
}

// symbol start patterns per language family
var (
	goFuncPattern     = regexp.MustCompile(`^func\s+(\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)
	pythonDefPattern  = regexp.MustCompile(`^(\s*)(def|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	cStyleFuncPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?(?:function\s+|class\s+)([A-Za-z_$][A-Za-z0-9_$]*)`)
)

var branchKeywords = []string{"if ", "for ", "while ", "case ", "&&", "||", "catch ", "elif ", "except "}

// HeuristicChunker splits files on symbol-definition lines. It is a
// line-pattern approximation, not a parser; chunk boundaries are the
// next definition at the same or shallower indentation.
type HeuristicChunker struct {
	maxChunkLines int
}

// NewHeuristicChunker creates a chunker; chunks longer than
// maxChunkLines are split into blocks
func NewHeuristicChunker(maxChunkLines int) *HeuristicChunker {
	if maxChunkLines <= 0 {
		maxChunkLines = 400
	}
	return &HeuristicChunker{maxChunkLines: maxChunkLines}
}

type symbolStart struct {
	line      int
	indent    int
	name      string
	parent    string
	chunkType string
}

// Chunk implements Chunker
func (h *HeuristicChunker) Chunk(file SourceFile, content []byte) []Chunk {
	lines := strings.Split(string(content), "\n")
	starts := findSymbolStarts(file.Language, lines)

	if len(starts) == 0 {
		// Whole file as a single module chunk.
		return []Chunk{h.build(file, lines, symbolStart{
			line:      0,
			name:      moduleName(file.Path),
			chunkType: constant.ChunkTypeModule,
		}, len(lines))}
	}

	var chunks []Chunk
	for i, start := range starts {
		end := len(lines)
		for j := i + 1; j < len(starts); j++ {
			if starts[j].indent <= start.indent {
				end = starts[j].line
				break
			}
		}
		if end-start.line > h.maxChunkLines {
			end = start.line + h.maxChunkLines
		}
		chunks = append(chunks, h.build(file, lines, start, end))
	}
	return chunks
}

func (h *HeuristicChunker) build(file SourceFile, lines []string, start symbolStart, end int) Chunk {
	body := strings.Join(lines[start.line:end], "\n")
	qualified := file.Path + ":" + start.name
	if start.parent != "" {
		qualified = file.Path + ":" + start.parent + "." + start.name
	}
	chunk := Chunk{
		FilePath:             file.Path,
		Language:             file.Language,
		ChunkType:            start.chunkType,
		Name:                 start.name,
		ParentName:           start.parent,
		QualifiedName:        qualified,
		Content:              body,
		LineStart:            start.line + 1,
		LineEnd:              end,
		Level:                strings.Count(file.Path, "/"),
		LineCount:            end - start.line,
		CyclomaticComplexity: cyclomaticEstimate(body),
		TokenEstimate:        len(body) / 4,
	}
	if start.indent > 0 {
		chunk.ChunkType = constant.ChunkTypeMethod
	}
	return chunk
}

func findSymbolStarts(language string, lines []string) []symbolStart {
	var starts []symbolStart
	for i, line := range lines {
		switch language {
		case "go":
			if m := goFuncPattern.FindStringSubmatch(line); m != nil {
				starts = append(starts, symbolStart{line: i, name: m[2], chunkType: constant.ChunkTypeFunction})
			}
		case "python":
			if m := pythonDefPattern.FindStringSubmatch(line); m != nil {
				chunkType := constant.ChunkTypeFunction
				if m[2] == "class" {
					chunkType = constant.ChunkTypeClass
				}
				starts = append(starts, symbolStart{line: i, indent: len(m[1]), name: m[3], chunkType: chunkType})
			}
		case "javascript", "typescript":
			if m := cStyleFuncPattern.FindStringSubmatch(line); m != nil {
				chunkType := constant.ChunkTypeFunction
				if strings.Contains(line, "class ") {
					chunkType = constant.ChunkTypeClass
				}
				starts = append(starts, symbolStart{line: i, name: m[1], chunkType: chunkType})
			}
		}
	}

	// Attribute parent names to nested symbols.
	for i := range starts {
		if starts[i].indent == 0 {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if starts[j].indent < starts[i].indent {
				starts[i].parent = starts[j].name
				break
			}
		}
	}
	return starts
}

func cyclomaticEstimate(body string) float64 {
	complexity := 1.0
	for _, keyword := range branchKeywords {
		complexity += float64(strings.Count(body, keyword))
	}
	return complexity
}

func moduleName(path string) string {
	base := path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return base
}
