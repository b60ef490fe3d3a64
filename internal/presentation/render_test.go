package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-chat/internal/models"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Rendered
	}{
		{
			name:    "structured image with caption",
			content: `{ "imageUrl": "https://x/y.png", "text": "caption" }`,
			want:    Rendered{Kind: KindImage, ImageURL: "https://x/y.png", Caption: "caption"},
		},
		{
			name:    "structured image without caption",
			content: `{"imageUrl":"https://x/y.png","text":42}`,
			want:    Rendered{Kind: KindImage, ImageURL: "https://x/y.png"},
		},
		{
			name:    "bare png url",
			content: "https://cdn.example.com/cat.png",
			want:    Rendered{Kind: KindImage, ImageURL: "https://cdn.example.com/cat.png"},
		},
		{
			name:    "bare jpeg url with query, upper case extension",
			content: "http://example.com/a/b.JPEG?w=200",
			want:    Rendered{Kind: KindImage, ImageURL: "http://example.com/a/b.JPEG?w=200"},
		},
		{
			name:    "protocol relative gif",
			content: "//example.com/dance.gif",
			want:    Rendered{Kind: KindImage, ImageURL: "//example.com/dance.gif"},
		},
		{
			name:    "data uri",
			content: "data:image/png;base64,iVBORw0KGgo=",
			want:    Rendered{Kind: KindImage, ImageURL: "data:image/png;base64,iVBORw0KGgo="},
		},
		{
			name:    "plain text",
			content: "hello class",
			want:    Rendered{Kind: KindText, Text: "hello class"},
		},
		{
			name:    "link to non image",
			content: "https://example.com/page.html",
			want:    Rendered{Kind: KindText, Text: "https://example.com/page.html"},
		},
		{
			name:    "json object without imageUrl",
			content: `{"text":"just words"}`,
			want:    Rendered{Kind: KindText, Text: `{"text":"just words"}`},
		},
		{
			name:    "empty imageUrl falls back to text",
			content: `{"imageUrl":"","text":"no picture"}`,
			want:    Rendered{Kind: KindText, Text: `{"imageUrl":"","text":"no picture"}`},
		},
		{
			name:    "image url embedded in sentence",
			content: "look https://x/y.png",
			want:    Rendered{Kind: KindText, Text: "look https://x/y.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.content))
		})
	}
}

func TestDisplayNameIsDeterministic(t *testing.T) {
	id := "5f0c6f4e-1a2b-4c3d-9e8f-0123456789ab"
	assert.Equal(t, DisplayName(id), DisplayName(id))
	assert.Contains(t, names[:], DisplayName(id))
}

func TestDisplayNameKnownValues(t *testing.T) {
	assert.Equal(t, "PlayfulSeal", DisplayName("a"))
	assert.Equal(t, "BraveTiger", DisplayName("ab"))
	assert.Equal(t, UnknownUser, DisplayName(""))
}

func TestDecorateFillsDisplayNameAndRendering(t *testing.T) {
	view := Decorate(models.Message{ID: "m1", UserID: "a", Content: "https://x/y.png"})

	require.Equal(t, "PlayfulSeal", view.DisplayName)
	assert.Equal(t, KindImage, view.Rendered.Kind)

	named := Decorate(models.Message{UserID: "a", DisplayName: "Miss Sarah", Content: "hi"})
	assert.Equal(t, "Miss Sarah", named.DisplayName)
	assert.Equal(t, KindText, named.Rendered.Kind)
}
