package fileproc

import (
	"context"

	"github.com/gaps-closure/vscle/pkg/source"
)

// File is a path together with its content.
type File struct {
	Path    string
	Content []byte
}

// ReadFiles reads every file from src concurrently. The returned files keep
// input order regardless of which read finishes first; unreadable files are
// reported to onError and left out.
func ReadFiles(ctx context.Context, files []string, src source.ContentSource, onError ErrorFunc) []File {
	return ForEachFile(ctx, files, func(path string) (File, error) {
		content, err := src.Read(path)
		if err != nil {
			return File{}, err
		}
		return File{Path: path, Content: content}, nil
	}, onError)
}
