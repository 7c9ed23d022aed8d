package service

import (
	"context"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

// RoomAPI is the room resource client surface the service drives.
// *roomclient.Client implements it.
type RoomAPI interface {
	ListRooms(ctx context.Context) (*domain.RoomList, error)
	GetRoom(ctx context.Context, id int) (*domain.Room, error)
	CreateRoom(ctx context.Context, draft domain.RoomDraft) (*domain.Room, error)
	UpdateRoom(ctx context.Context, id int, patch domain.RoomFields) (*domain.Room, error)
	DeleteRoom(ctx context.Context, id int) error
	UploadTempImage(ctx context.Context, filename string, image io.Reader) (string, error)
	FinalizeImage(ctx context.Context, roomID int, tempImageURL string) error
	RegeneratePDF(ctx context.Context, roomID int) error
	DownloadPDF(ctx context.Context, roomID int) ([]byte, error)
	IsTempImage(imageURL string) bool
	ResolveImageURL(imageURL string) string
}

// CreateStep is how far the create-with-image saga got.
type CreateStep int

const (
	// StepNoImage: room created, the draft carried no temporary image.
	StepNoImage CreateStep = iota
	// StepImagePending: room created but its image_url still points at a
	// temporary upload because finalizing failed. Nothing is retried or
	// rolled back; the room stays in this state until edited.
	StepImagePending
	// StepImageFinalized: room created and its image moved to the
	// permanent namespace.
	StepImageFinalized
)

func (s CreateStep) String() string {
	switch s {
	case StepNoImage:
		return "no_image"
	case StepImagePending:
		return "image_pending"
	case StepImageFinalized:
		return "image_finalized"
	default:
		return fmt.Sprintf("CreateStep(%d)", int(s))
	}
}

// CreateOutcome is the result of a successful create.
type CreateOutcome struct {
	Room        *domain.Room
	Step        CreateStep
	FinalizeErr error
}

// SaveOutcome is the result of a successful save. PDFErr records a failed
// best-effort regeneration; the save itself still succeeded.
type SaveOutcome struct {
	Room   *domain.Room
	PDFErr error
}

// RoomService orchestrates multi-call room workflows.
type RoomService struct {
	api    RoomAPI
	logger *zap.Logger
}

// NewRoomService creates a RoomService.
func NewRoomService(api RoomAPI, logger *zap.Logger) *RoomService {
	return &RoomService{api: api, logger: logger}
}

// API exposes the underlying client for single-call operations.
func (s *RoomService) API() RoomAPI { return s.api }

// List returns the rooms most-recently-created first. The API answers in
// creation order, so the list is reversed.
func (s *RoomService) List(ctx context.Context) (*domain.RoomList, error) {
	list, err := s.api.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := &domain.RoomList{
		Rooms:     slices.Clone(list.Rooms),
		Invalid:   list.Invalid,
		Malformed: list.Malformed,
	}
	slices.Reverse(out.Rooms)
	return out, nil
}

// Create runs the two-step create:
//  1. CreateRoom with the draft as-is (a temporary image_url included);
//  2. only if that succeeded and the image is temporary, FinalizeImage once.
//
// A create failure returns the error and no finalize happens, leaving the
// upload orphaned in the temp namespace. A finalize failure is not an
// error: the outcome reports StepImagePending.
func (s *RoomService) Create(ctx context.Context, draft domain.RoomDraft) (*CreateOutcome, error) {
	room, err := s.api.CreateRoom(ctx, draft)
	if err != nil {
		return nil, err
	}
	out := &CreateOutcome{Room: room, Step: StepNoImage}

	if draft.ImageURL == "" || !s.api.IsTempImage(draft.ImageURL) {
		return out, nil
	}

	if err := s.api.FinalizeImage(ctx, room.ID, draft.ImageURL); err != nil {
		s.logger.Warn("Room created but image finalize failed",
			zap.Int("room_id", room.ID),
			zap.String("temp_image_url", draft.ImageURL),
			zap.Error(err),
		)
		out.Step = StepImagePending
		out.FinalizeErr = err
		return out, nil
	}
	out.Step = StepImageFinalized
	return out, nil
}

// Save applies patch and then regenerates the stored PDF. Regeneration is
// best effort.
func (s *RoomService) Save(ctx context.Context, id int, patch domain.RoomFields) (*SaveOutcome, error) {
	room, err := s.api.UpdateRoom(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	out := &SaveOutcome{Room: room}
	if err := s.api.RegeneratePDF(ctx, id); err != nil {
		s.logger.Warn("PDF regeneration after save failed",
			zap.Int("room_id", id),
			zap.Error(err),
		)
		out.PDFErr = err
	}
	return out, nil
}

// DownloadPDF returns the save-as file name and bytes of a room summary.
func (s *RoomService) DownloadPDF(ctx context.Context, room domain.Room) (string, []byte, error) {
	data, err := s.api.DownloadPDF(ctx, room.ID)
	if err != nil {
		return "", nil, err
	}
	return domain.PDFFileName(room.ID, room.Name), data, nil
}
