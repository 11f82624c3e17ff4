package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
)

func TestFetch(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	out, err := Compose(ctx, database, config.DefaultConfig(), ComposeInput{
		Image:   galleryJPEG(t, 64, 64),
		Caption: "family walk",
		Weather: true,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	got, err := Fetch(ctx, database, FetchInput{ID: "  " + out.ID + " "})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.ID != out.ID || got.Caption != "family walk" {
		t.Errorf("got %+v", got.Post)
	}
	if len(got.Image) == 0 || got.ImageBytes != len(got.Image) {
		t.Errorf("image bytes = %d, len = %d", got.ImageBytes, len(got.Image))
	}
	if len(got.Overlays) != 1 || got.Overlays[0] != "맑음 24°C" {
		t.Errorf("Overlays = %v", got.Overlays)
	}

	noImage, err := Fetch(ctx, database, FetchInput{ID: out.ID, IncludeImage: boolPtr(false)})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if noImage.Image != nil || noImage.ImageBytes == 0 {
		t.Errorf("include_image=false: image=%d bytes, image_bytes=%d", len(noImage.Image), noImage.ImageBytes)
	}
}

func TestFetch_Errors(t *testing.T) {
	database := openTestDB(t)

	tests := []struct {
		name string
		id   string
		code errors.ErrorCode
	}{
		{"empty id", "", errors.ErrInvalidRequest},
		{"blank id", "   ", errors.ErrInvalidRequest},
		{"missing", "01NOPE", errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fetch(context.Background(), database, FetchInput{ID: tt.id})
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	for i := 0; i < 3; i++ {
		if _, err := Compose(ctx, database, nil, ComposeInput{Image: galleryJPEG(t, 16, 16)}); err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
	}

	out, err := List(ctx, database, ListInput{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 || !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("page 1: %d items, pagination %+v", len(out.Items), out.Pagination)
	}
	if out.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}

	out, err = List(ctx, database, ListInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("page 2: %d items, pagination %+v", len(out.Items), out.Pagination)
	}

	out, err = List(ctx, database, ListInput{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit || out.Pagination.Offset != 0 {
		t.Errorf("bounds not applied: %+v", out.Pagination)
	}
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	mom := config.DefaultConfig()
	mom.Author = "mom"
	if _, err := Compose(ctx, database, mom, ComposeInput{Image: galleryJPEG(t, 16, 16)}, WithClock(testClock)); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if _, err := Compose(ctx, database, nil, ComposeInput{Image: galleryJPEG(t, 16, 16)}, WithClock(testClock)); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	out, err := List(ctx, database, ListInput{Author: "mom"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Author != "mom" {
		t.Errorf("author filter: %+v", out.Items)
	}

	out, err = List(ctx, database, ListInput{Date: "2024-05-17"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Errorf("date filter: %d items, want 2", len(out.Items))
	}

	out, err = List(ctx, database, ListInput{Date: "2024-05-18"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Items == nil || len(out.Items) != 0 {
		t.Errorf("empty result should be an empty slice, got %#v", out.Items)
	}

	if _, err := List(ctx, database, ListInput{Date: "May 17"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	out, err := Compose(ctx, database, nil, ComposeInput{Image: galleryJPEG(t, 16, 16)})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	del, err := Delete(ctx, database, DeleteInput{ID: out.ID})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !del.Deleted || del.ID != out.ID {
		t.Errorf("got %+v", del)
	}

	if _, err := Delete(ctx, database, DeleteInput{ID: out.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete error = %v, want NOT_FOUND", err)
	}
	if _, err := Delete(ctx, database, DeleteInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty id error = %v, want INVALID_REQUEST", err)
	}
}
