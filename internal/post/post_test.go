package post

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToSummary(t *testing.T) {
	loc := "서울특별시 강남구"
	p := &Post{
		ID:          "01HXYZ",
		Author:      "me",
		Caption:     "산책",
		Location:    &loc,
		Filter:      "Still",
		Image:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		CreatedDate: "2024-05-17",
		CreatedAt:   1715938860,
	}

	s := p.ToSummary()
	require.Equal(t, "01HXYZ", s.ID)
	require.Equal(t, 4, s.ImageBytes)
	require.Equal(t, &loc, s.Location)
	require.Equal(t, "2024-05-17", s.CreatedDate)
}

func TestOverlays(t *testing.T) {
	loc, tm, health := "강남구", "09:41", "오운완"
	empty := ""
	p := &Post{Location: &loc, Weather: &empty, Time: &tm, Health: &health}
	require.Equal(t, []string{"강남구", "09:41", "오운완"}, p.Overlays())

	require.Empty(t, (&Post{}).Overlays())
}
