// Package commit implements the atomic, batched commit pipeline of
// spec §4.F: NDJSON operation decoding, quota-checked staging, the VOS
// commit call, and the single DB transaction that follows it.
// Grounded on components/ledger/internal/services/command's
// validate-then-persist command shape, generalized from a single
// entity mutation to a batched, ordered operation sequence.
package commit

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kohakuhub/hub/internal/apperr"
)

// OpKind discriminates the five operation shapes spec §4.F names.
type OpKind string

const (
	OpHeader        OpKind = "header"
	OpFile          OpKind = "file"
	OpLFSFile       OpKind = "lfsFile"
	OpDeletedFile   OpKind = "deletedFile"
	OpDeletedFolder OpKind = "deletedFolder"
	OpCopyFile      OpKind = "copyFile"
)

// rawOp is the wire shape: a discriminated union flattened into one
// JSON object per NDJSON line, keyed by whichever field is present.
type rawOp struct {
	Header *struct {
		Summary      string  `json:"summary"`
		Description  string  `json:"description"`
		ParentCommit *string `json:"parent_commit"`
	} `json:"header"`
	File *struct {
		Path       string `json:"path"`
		ContentB64 string `json:"content_b64"`
		Size       int64  `json:"size"`
		SHA256     string `json:"sha256"`
	} `json:"file"`
	LFSFile *struct {
		Path string `json:"path"`
		OID  string `json:"oid"`
		Size int64  `json:"size"`
	} `json:"lfsFile"`
	DeletedFile *struct {
		Path string `json:"path"`
	} `json:"deletedFile"`
	DeletedFolder *struct {
		PathPrefix string `json:"path_prefix"`
	} `json:"deletedFolder"`
	CopyFile *struct {
		SrcPath     string `json:"src_path"`
		SrcRevision string `json:"src_revision"`
		DstPath     string `json:"dst_path"`
	} `json:"copyFile"`
}

// HeaderOp is the mandatory, first, at-most-once operation.
type HeaderOp struct {
	Summary      string
	Description  string
	ParentCommit *string
}

// FileOp adds/replaces a small inline file (decoded from base64).
type FileOp struct {
	Path    string
	Content []byte
	Size    int64
	SHA256  string
}

// LFSFileOp adds/replaces a large file by reference to an already
// uploaded LFS object.
type LFSFileOp struct {
	Path string
	OID  string
	Size int64
}

// DeletedFileOp tombstones one path.
type DeletedFileOp struct {
	Path string
}

// DeletedFolderOp tombstones every path under a prefix.
type DeletedFolderOp struct {
	PathPrefix string
}

// CopyFileOp duplicates a file from a source revision to a new path.
type CopyFileOp struct {
	SrcPath     string
	SrcRevision string
	DstPath     string
}

// Operation is the parsed, typed form of one NDJSON line.
type Operation struct {
	Kind          OpKind
	Header        *HeaderOp
	File          *FileOp
	LFSFile       *LFSFileOp
	DeletedFile   *DeletedFileOp
	DeletedFolder *DeletedFolderOp
	CopyFile      *CopyFileOp
}

// ParseNDJSON decodes a commit request body into an ordered operation
// list, enforcing "header first, at most one header" at parse time
// (spec §4.F step 1). It reads the body line by line with a
// bufio.Scanner (lines up to 16 MiB) and decodes each line with
// json.Unmarshal — no ecosystem NDJSON library is warranted for a
// format this simple.
func ParseNDJSON(r io.Reader) ([]Operation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var ops []Operation

	headerSeen := false

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw rawOp
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, apperr.NewValidation("BadRequest", "malformed NDJSON operation line")
		}

		op, err := toOperation(raw)
		if err != nil {
			return nil, err
		}

		if op.Kind == OpHeader {
			if headerSeen {
				return nil, apperr.NewValidation("BadRequest", "at most one header operation is allowed")
			}

			headerSeen = true
		}

		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to read commit request body")
	}

	if !headerSeen {
		return nil, apperr.NewValidation("BadRequest", "commit request must begin with a header operation")
	}

	if ops[0].Kind != OpHeader {
		return nil, apperr.NewValidation("BadRequest", "header operation must be first")
	}

	return ops, nil
}

func toOperation(raw rawOp) (Operation, error) {
	switch {
	case raw.Header != nil:
		return Operation{Kind: OpHeader, Header: &HeaderOp{
			Summary: raw.Header.Summary, Description: raw.Header.Description, ParentCommit: raw.Header.ParentCommit,
		}}, nil

	case raw.File != nil:
		content, err := base64.StdEncoding.DecodeString(raw.File.ContentB64)
		if err != nil {
			return Operation{}, apperr.NewValidation("BadRequest", "file content is not valid base64")
		}

		if int64(len(content)) != raw.File.Size {
			return Operation{}, apperr.NewValidation("BadRequest", fmt.Sprintf("declared size %d does not match decoded content length %d", raw.File.Size, len(content)))
		}

		return Operation{Kind: OpFile, File: &FileOp{
			Path: raw.File.Path, Content: content, Size: raw.File.Size, SHA256: raw.File.SHA256,
		}}, nil

	case raw.LFSFile != nil:
		return Operation{Kind: OpLFSFile, LFSFile: &LFSFileOp{
			Path: raw.LFSFile.Path, OID: raw.LFSFile.OID, Size: raw.LFSFile.Size,
		}}, nil

	case raw.DeletedFile != nil:
		return Operation{Kind: OpDeletedFile, DeletedFile: &DeletedFileOp{Path: raw.DeletedFile.Path}}, nil

	case raw.DeletedFolder != nil:
		return Operation{Kind: OpDeletedFolder, DeletedFolder: &DeletedFolderOp{PathPrefix: raw.DeletedFolder.PathPrefix}}, nil

	case raw.CopyFile != nil:
		return Operation{Kind: OpCopyFile, CopyFile: &CopyFileOp{
			SrcPath: raw.CopyFile.SrcPath, SrcRevision: raw.CopyFile.SrcRevision, DstPath: raw.CopyFile.DstPath,
		}}, nil

	default:
		return Operation{}, apperr.NewValidation("BadRequest", "operation line matched no known operation kind")
	}
}
