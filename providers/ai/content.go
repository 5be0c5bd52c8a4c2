package ai

import (
	"encoding/json"
	"strings"
)

// ContentType identifies the kind of media carried by a ContentPart.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
	ContentTypeVideo ContentType = "video"
	ContentTypeFile  ContentType = "file"
)

// ContentPart is one typed unit of message content. Exactly one payload field
// is meaningful, selected by Type: Text for text parts, URL for image/audio/file
// parts and single-URL video parts, URLs for frame-list video parts.
type ContentPart struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
	URL  string      `json:"url,omitempty"`
	URLs []string    `json:"urls,omitempty"`
}

// IsMultimodal reports whether the part carries non-text media.
func (p ContentPart) IsMultimodal() bool {
	return p.Type != ContentTypeText
}

// MessageContent is the content of a single chat message. On the wire it may
// be a plain string, an array of typed parts, or a single part object; all
// three shapes are decoded once, here, into a text-or-parts union. The
// original wire bytes are retained so that protocols which accept role/content
// pairs unmodified can pass the content through byte-for-byte.
type MessageContent struct {
	raw    json.RawMessage
	text   string
	isText bool
	parts  []ContentPart
}

// TextContent builds a plain-text MessageContent.
func TextContent(text string) MessageContent {
	return MessageContent{text: text, isText: true}
}

// PartsContent builds a MessageContent from typed parts.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{parts: parts}
}

// IsText reports whether the content is a plain string.
func (c MessageContent) IsText() bool {
	return c.isText
}

// PlainText returns the content string for plain-text content, or the empty
// string otherwise.
func (c MessageContent) PlainText() string {
	if c.isText {
		return c.text
	}
	return ""
}

// Parts returns the decoded typed parts. For plain-text content it returns a
// single text part (or nothing when the text is blank); for part-shaped
// content it returns every part that survived decoding. Wire parts that could
// not be mapped to any known shape are dropped individually during decoding,
// so the result may be shorter than the wire array, down to empty.
func (c MessageContent) Parts() []ContentPart {
	if c.isText {
		if strings.TrimSpace(c.text) == "" {
			return nil
		}
		return []ContentPart{{Type: ContentTypeText, Text: c.text}}
	}
	return c.parts
}

// HasMultimodal reports whether any decoded part carries non-text media.
func (c MessageContent) HasMultimodal() bool {
	for _, part := range c.parts {
		if part.IsMultimodal() {
			return true
		}
	}
	return false
}

// MarshalJSON writes the original wire bytes when the content was decoded from
// the wire, preserving shapes this package does not model. Content constructed
// programmatically marshals as a string or a part array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	if c.isText {
		return json.Marshal(c.text)
	}
	return json.Marshal(c.parts)
}

// UnmarshalJSON decodes the three wire shapes (string, part array, single part
// object) into the union. Unmappable parts are dropped one by one; decoding
// never fails for a part this package does not recognize, only for bytes that
// are not valid JSON at all.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	c.raw = append(json.RawMessage(nil), data...)

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.isText = true
		c.text = text
		c.parts = nil
		return nil
	}

	c.isText = false
	c.text = ""
	c.parts = nil

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err == nil {
		for _, element := range elements {
			if part, ok := decodeContentPart(element); ok {
				c.parts = append(c.parts, part)
			}
		}
		return nil
	}

	if part, ok := decodeContentPart(data); ok {
		c.parts = []ContentPart{part}
	}
	return nil
}

// wirePart models every field a heterogeneous content part may carry. Fields
// that appear as either a string or a nested object on the wire are kept raw
// and probed by the extract helpers below.
type wirePart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Content    json.RawMessage `json:"content"`
	Image      string          `json:"image"`
	Audio      string          `json:"audio"`
	Video      json.RawMessage `json:"video"`
	File       json.RawMessage `json:"file"`
	FileURL    json.RawMessage `json:"file_url"`
	FileURLAlt json.RawMessage `json:"fileUrl"`
	ImageURL   json.RawMessage `json:"image_url"`
	VideoURL   json.RawMessage `json:"video_url"`
	InputAudio *wireInputAudio `json:"input_audio"`
	URL        string          `json:"url"`
}

// wireInputAudio is the OpenAI-style inline audio shape: either a URL or a
// base64 payload with a declared format.
type wireInputAudio struct {
	URL    string `json:"url"`
	Data   string `json:"data"`
	Format string `json:"format"`
}

// decodeContentPart maps one raw wire part to a typed ContentPart. It checks
// direct media fields first, then falls back to the type discriminator. The
// second return value is false when the part matches no known shape; callers
// drop such parts rather than failing the message.
func decodeContentPart(data json.RawMessage) (ContentPart, bool) {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return ContentPart{}, false
		}
		return ContentPart{Type: ContentTypeText, Text: text}, true
	}

	var part wirePart
	if err := json.Unmarshal(data, &part); err != nil {
		return ContentPart{}, false
	}

	// Direct fields take priority over the type discriminator.
	if strings.TrimSpace(part.Text) != "" {
		return ContentPart{Type: ContentTypeText, Text: part.Text}, true
	}
	if strings.TrimSpace(part.Image) != "" {
		return ContentPart{Type: ContentTypeImage, URL: part.Image}, true
	}
	if strings.TrimSpace(part.Audio) != "" {
		return ContentPart{Type: ContentTypeAudio, URL: part.Audio}, true
	}
	if url, urls, ok := videoValue(part.Video); ok {
		return videoPart(url, urls), true
	}
	if url := stringOrURLObject(part.File); url != "" {
		return ContentPart{Type: ContentTypeFile, URL: url}, true
	}
	if url := stringOrURLObject(part.FileURL); url != "" {
		return ContentPart{Type: ContentTypeFile, URL: url}, true
	}

	switch strings.ToLower(strings.TrimSpace(part.Type)) {
	case "text", "input_text", "output_text":
		text := part.Text
		if text == "" {
			// Some producers put the text under "content" instead.
			var alt string
			if err := json.Unmarshal(part.Content, &alt); err == nil {
				text = alt
			}
		}
		if strings.TrimSpace(text) == "" {
			return ContentPart{}, false
		}
		return ContentPart{Type: ContentTypeText, Text: text}, true

	case "image", "image_url", "input_image":
		if url := part.extractImage(); url != "" {
			return ContentPart{Type: ContentTypeImage, URL: url}, true
		}

	case "video", "video_url", "input_video":
		if url, urls, ok := part.extractVideo(); ok {
			return videoPart(url, urls), true
		}

	case "audio", "input_audio":
		if url := part.extractAudio(); url != "" {
			return ContentPart{Type: ContentTypeAudio, URL: url}, true
		}

	case "file", "file_url", "input_file", "input_file_url", "document", "input_document":
		if url := part.extractFile(); url != "" {
			return ContentPart{Type: ContentTypeFile, URL: url}, true
		}
	}

	return ContentPart{}, false
}

func videoPart(url string, urls []string) ContentPart {
	if len(urls) > 0 {
		return ContentPart{Type: ContentTypeVideo, URLs: urls}
	}
	return ContentPart{Type: ContentTypeVideo, URL: url}
}

// extractImage resolves the image URL from the image, image_url (string or
// {url}) and url fields, in that order.
func (p wirePart) extractImage() string {
	if strings.TrimSpace(p.Image) != "" {
		return p.Image
	}
	if url := stringOrURLObject(p.ImageURL); url != "" {
		return url
	}
	return strings.TrimSpace(p.URL)
}

// extractVideo resolves a video reference: a single URL, a frame-URL list, the
// video_url field (string or {url}), or the bare url field.
func (p wirePart) extractVideo() (string, []string, bool) {
	if url, urls, ok := videoValue(p.Video); ok {
		return url, urls, true
	}
	if url := stringOrURLObject(p.VideoURL); url != "" {
		return url, nil, true
	}
	if url := strings.TrimSpace(p.URL); url != "" {
		return url, nil, true
	}
	return "", nil, false
}

// extractAudio resolves an audio reference. Inline base64 payloads are
// re-encoded as a self-describing data: URI using the declared format, or
// "wav" when none is given.
func (p wirePart) extractAudio() string {
	if strings.TrimSpace(p.Audio) != "" {
		return p.Audio
	}
	if p.InputAudio == nil {
		return ""
	}
	if url := strings.TrimSpace(p.InputAudio.URL); url != "" {
		return url
	}
	if data := strings.TrimSpace(p.InputAudio.Data); data != "" {
		format := strings.ToLower(strings.TrimSpace(p.InputAudio.Format))
		if format == "" {
			format = "wav"
		}
		return "data:audio/" + format + ";base64," + data
	}
	return ""
}

// extractFile resolves a file reference from the file / file_url / fileUrl
// fields in string, {url} and {file_url} shapes, falling back to url.
func (p wirePart) extractFile() string {
	for _, candidate := range []json.RawMessage{p.File, p.FileURL, p.FileURLAlt} {
		if url := stringOrURLObject(candidate); url != "" {
			return url
		}
	}
	return strings.TrimSpace(p.URL)
}

// stringOrURLObject resolves a field that may be a plain URL string or a
// nested object carrying the URL under url / file_url / fileUrl.
func stringOrURLObject(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		return strings.TrimSpace(url)
	}
	var nested struct {
		URL        string `json:"url"`
		FileURL    string `json:"file_url"`
		FileURLAlt string `json:"fileUrl"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return ""
	}
	for _, candidate := range []string{nested.URL, nested.FileURL, nested.FileURLAlt} {
		if url := strings.TrimSpace(candidate); url != "" {
			return url
		}
	}
	return ""
}

// videoValue resolves the video field, which may be a single URL string or a
// list of frame URLs. Blank list entries are dropped; a list that ends up
// empty does not count as a video.
func videoValue(data json.RawMessage) (string, []string, bool) {
	if len(data) == 0 {
		return "", nil, false
	}
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		if strings.TrimSpace(url) == "" {
			return "", nil, false
		}
		return url, nil, true
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return "", nil, false
	}
	var urls []string
	for _, item := range list {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		return "", nil, false
	}
	return "", urls, true
}
