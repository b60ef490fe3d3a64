// Package presentation decides how a message's content should be displayed and
// derives the pseudonymous author names shown next to it.
package presentation

import (
	"encoding/json"
	"regexp"
	"unicode/utf16"

	"classroom-chat/internal/models"
)

// Kind is the display branch chosen for a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

var (
	imageURLPattern = regexp.MustCompile(`(?i)^(https?:)?//.*\.(png|jpe?g|gif|webp|bmp|svg)(\?.*)?$`)
	dataURIPattern  = regexp.MustCompile(`^data:image/`)
)

// Rendered is the display form of a message's content.
type Rendered struct {
	Kind     Kind   `json:"kind"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Render classifies content as a structured image, a bare image URL or plain text.
func Render(content string) Rendered {
	var structured map[string]any
	if err := json.Unmarshal([]byte(content), &structured); err == nil {
		if imageURL, ok := structured["imageUrl"].(string); ok && imageURL != "" {
			caption, _ := structured["text"].(string)
			return Rendered{Kind: KindImage, ImageURL: imageURL, Caption: caption}
		}
	}
	if IsImageURL(content) {
		return Rendered{Kind: KindImage, ImageURL: content}
	}
	return Rendered{Kind: KindText, Text: content}
}

// IsImageURL matches http(s) or protocol-relative links to image files and image data URIs.
func IsImageURL(s string) bool {
	return imageURLPattern.MatchString(s) || dataURIPattern.MatchString(s)
}

var names = [...]string{
	"SunnyLion", "BlueWhale", "HappyFox", "MightyBear", "SwiftEagle",
	"BraveTiger", "GentlePanda", "CleverOtter", "LuckyRabbit", "WiseOwl",
	"ShyDeer", "BoldWolf", "TinyMouse", "QuickSquirrel", "CalmTurtle",
	"JollyFrog", "KindElephant", "PlayfulSeal", "BrightStar", "MagicPenguin",
}

// UnknownUser is shown for messages without an author.
const UnknownUser = "Unknown User"

// DisplayName maps a user id onto a fixed table of friendly names. Different
// ids may share a name; the same id always gets the same one.
func DisplayName(userID string) string {
	if userID == "" {
		return UnknownUser
	}
	hash := 0
	for _, unit := range utf16.Encode([]rune(userID)) {
		hash = (hash*31 + int(unit)) % len(names)
	}
	return names[hash]
}

// MessageView is a message decorated for clients.
type MessageView struct {
	models.Message
	Rendered Rendered `json:"rendered"`
}

// Decorate fills the derived display name and rendering of msg.
func Decorate(msg models.Message) MessageView {
	if msg.DisplayName == "" {
		msg.DisplayName = DisplayName(msg.UserID)
	}
	return MessageView{Message: msg, Rendered: Render(msg.Content)}
}

// DecorateAll decorates msgs in order.
func DecorateAll(msgs []models.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, Decorate(m))
	}
	return views
}
