package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// BracketArchiver stores a JSON snapshot of a decided bracket. One object
// per tournament: a later champion overwrites it, a reopened bracket drops it.
type BracketArchiver interface {
	ArchiveBracket(ctx context.Context, tournamentID int, snapshot interface{}) (*UploadResult, error)
	DiscardBracket(ctx context.Context, tournamentID int) error
}

type bracketArchiver struct {
	uploader FileUploader
}

// NewBracketArchiver returns an archiver on top of uploader. A nil uploader
// yields an archiver that stores nothing.
func NewBracketArchiver(uploader FileUploader) BracketArchiver {
	if uploader == nil {
		return noopArchiver{}
	}
	return &bracketArchiver{uploader: uploader}
}

func ArchiveKey(tournamentID int) string {
	return fmt.Sprintf("brackets/tournament_%d/bracket.json", tournamentID)
}

func (a *bracketArchiver) ArchiveBracket(ctx context.Context, tournamentID int, snapshot interface{}) (*UploadResult, error) {
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket snapshot for tournament %d: %w", tournamentID, err)
	}
	return a.uploader.Upload(ctx, ArchiveKey(tournamentID), "application/json", bytes.NewReader(body))
}

func (a *bracketArchiver) DiscardBracket(ctx context.Context, tournamentID int) error {
	return a.uploader.Delete(ctx, ArchiveKey(tournamentID))
}

type noopArchiver struct{}

func (noopArchiver) ArchiveBracket(context.Context, int, interface{}) (*UploadResult, error) {
	return nil, nil
}

func (noopArchiver) DiscardBracket(context.Context, int) error { return nil }
