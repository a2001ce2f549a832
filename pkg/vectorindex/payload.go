// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package vectorindex

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
)

// SchemaVersion is the current payload schema revision.
const SchemaVersion = 1

// MaxContentLength bounds the code excerpt stored on a point. Longer
// chunks are truncated and flagged.
const MaxContentLength = 2000

// OutlierClusterID marks points the clustering step left unassigned.
const OutlierClusterID = -1

// Payload is the typed payload attached to every vector point.
type Payload struct {
	SchemaVersion        int     `json:"schema_version"`
	RepositoryID         string  `json:"repository_id"`
	CommitSHA            string  `json:"commit_sha"`
	FilePath             string  `json:"file_path"`
	Language             string  `json:"language"`
	ChunkType            string  `json:"chunk_type"`
	Name                 string  `json:"name"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	ParentName           string  `json:"parent_name"`
	Docstring            string  `json:"docstring"`
	Content              string  `json:"content"`
	ContentTruncated     bool    `json:"content_truncated"`
	FullContentLength    int     `json:"full_content_length"`
	TokenEstimate        int     `json:"token_estimate"`
	Level                int     `json:"level"`
	QualifiedName        string  `json:"qualified_name"`
	CyclomaticComplexity float64 `json:"cyclomatic_complexity"`
	LineCount            int     `json:"line_count"`
	ClusterID            *int    `json:"cluster_id,omitempty"`
}

var knownPayloadFields = map[string]bool{
	"schema_version": true, "repository_id": true, "commit_sha": true,
	"file_path": true, "language": true, "chunk_type": true, "name": true,
	"line_start": true, "line_end": true, "parent_name": true,
	"docstring": true, "content": true, "content_truncated": true,
	"full_content_length": true, "token_estimate": true, "level": true,
	"qualified_name": true, "cyclomatic_complexity": true,
	"line_count": true, "cluster_id": true,
}

// NewPayload builds a payload from a raw chunk, truncating the content
// excerpt when it exceeds MaxContentLength.
func NewPayload(repositoryID, commitSHA, filePath, language, chunkType, name string, content string) Payload {
	p := Payload{
		SchemaVersion:     SchemaVersion,
		RepositoryID:      repositoryID,
		CommitSHA:         commitSHA,
		FilePath:          filePath,
		Language:          language,
		ChunkType:         chunkType,
		Name:              name,
		Content:           content,
		FullContentLength: len(content),
	}
	if len(content) > MaxContentLength {
		cut := MaxContentLength
		// Back up so the cut never splits a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		p.Content = content[:cut]
		p.ContentTruncated = true
	}
	return p
}

// Validate enforces the payload contract. Violations carry
// CodeCorruptPayload so callers can skip the item and continue.
func (p *Payload) Validate() error {
	if p.SchemaVersion != SchemaVersion {
		return corrupt("unsupported schema_version %d", p.SchemaVersion)
	}
	if p.RepositoryID == "" || p.CommitSHA == "" || p.FilePath == "" {
		return corrupt("repository_id, commit_sha, and file_path are required")
	}
	if len(p.Content) > MaxContentLength {
		return corrupt("content exceeds %d chars", MaxContentLength)
	}
	if p.ContentTruncated && p.FullContentLength <= MaxContentLength {
		return corrupt("content_truncated set but full_content_length %d fits", p.FullContentLength)
	}
	if !p.ContentTruncated && p.FullContentLength != len(p.Content) {
		return corrupt("full_content_length %d does not match content", p.FullContentLength)
	}
	if p.LineStart < 0 || p.LineEnd < p.LineStart {
		return corrupt("bad line range [%d, %d]", p.LineStart, p.LineEnd)
	}
	return nil
}

// PayloadFromMap decodes a point payload as returned by the index,
// rejecting unknown fields.
func PayloadFromMap(raw map[string]interface{}) (*Payload, error) {
	for key := range raw {
		if !knownPayloadFields[key] {
			return nil, corrupt("unknown payload field %q", key)
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, corrupt("unmarshalable payload: %v", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, corrupt("malformed payload: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func corrupt(format string, args ...interface{}) error {
	return errors.NewError().WithCode(errors.CodeCorruptPayload).WithMessagef(format, args...)
}
