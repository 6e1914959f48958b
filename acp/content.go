package acp

import (
	"encoding/json"
	"fmt"
)

// Role identifies the sender or recipient of messages and data in a
// conversation.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// ContentBlock represents displayable information exchanged between agents and
// clients. Content blocks appear in user prompts sent via session/prompt, in
// language model output streamed through session/update notifications, and in
// progress updates and results from tool calls.
//
// On the wire a content block is a JSON object tagged by its "type" field.
// Exactly one of the variant fields is set. The structure is compatible with
// the Model Context Protocol, so agents can forward content from MCP tool
// outputs without transformation.
type ContentBlock struct {
	// Text is plain text or Markdown. All agents MUST support text content in
	// prompts; clients SHOULD render it as Markdown.
	Text *TextContent
	// Image holds image data for visual context or analysis. Requires the
	// image prompt capability when included in prompts.
	Image *ImageContent
	// Audio holds audio data for transcription or analysis. Requires the
	// audio prompt capability when included in prompts.
	Audio *AudioContent
	// ResourceLink references a resource the agent can access. All agents
	// MUST support resource links in prompts.
	ResourceLink *ResourceLink
	// Resource embeds complete resource contents directly in the message.
	// Preferred for including context as it avoids extra round-trips.
	// Requires the embeddedContext prompt capability when included in prompts.
	Resource *EmbeddedResource
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: &TextContent{Text: text}}
}

// ImageBlock builds an image content block from base64-encoded data.
func ImageBlock(data, mimeType string) ContentBlock {
	return ContentBlock{Image: &ImageContent{Data: data, MimeType: mimeType}}
}

// AudioBlock builds an audio content block from base64-encoded data.
func AudioBlock(data, mimeType string) ContentBlock {
	return ContentBlock{Audio: &AudioContent{Data: data, MimeType: mimeType}}
}

// ResourceLinkBlock builds a resource link content block.
func ResourceLinkBlock(name, uri string) ContentBlock {
	return ContentBlock{ResourceLink: &ResourceLink{Name: name, URI: uri}}
}

func (c ContentBlock) MarshalJSON() ([]byte, error) {
	switch {
	case c.Text != nil:
		return marshalTagged("type", "text", c.Text)
	case c.Image != nil:
		return marshalTagged("type", "image", c.Image)
	case c.Audio != nil:
		return marshalTagged("type", "audio", c.Audio)
	case c.ResourceLink != nil:
		return marshalTagged("type", "resource_link", c.ResourceLink)
	case c.Resource != nil:
		return marshalTagged("type", "resource", c.Resource)
	default:
		return nil, fmt.Errorf("content block has no variant set")
	}
}

func (c *ContentBlock) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "type")
	if err != nil {
		return err
	}
	*c = ContentBlock{}
	switch tag {
	case "text":
		c.Text = new(TextContent)
		return json.Unmarshal(data, c.Text)
	case "image":
		c.Image = new(ImageContent)
		return json.Unmarshal(data, c.Image)
	case "audio":
		c.Audio = new(AudioContent)
		return json.Unmarshal(data, c.Audio)
	case "resource_link":
		c.ResourceLink = new(ResourceLink)
		return json.Unmarshal(data, c.ResourceLink)
	case "resource":
		c.Resource = new(EmbeddedResource)
		return json.Unmarshal(data, c.Resource)
	default:
		return fmt.Errorf("unrecognized content block type %q", tag)
	}
}

// TextContent is text provided to or from an LLM.
type TextContent struct {
	Annotations *Annotations `json:"annotations,omitempty"`
	Text        string       `json:"text"`
	Meta        Meta         `json:"_meta,omitempty"`
}

// ImageContent is an image provided to or from an LLM.
type ImageContent struct {
	Annotations *Annotations `json:"annotations,omitempty"`
	// Data is the base64-encoded image data.
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	URI      string `json:"uri,omitempty"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// AudioContent is audio provided to or from an LLM.
type AudioContent struct {
	Annotations *Annotations `json:"annotations,omitempty"`
	// Data is the base64-encoded audio data.
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// ResourceLink is a resource that the agent is capable of reading, included in
// a prompt or tool call result.
type ResourceLink struct {
	Annotations *Annotations `json:"annotations,omitempty"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Name        string       `json:"name"`
	Size        *int64       `json:"size,omitempty"`
	Title       string       `json:"title,omitempty"`
	URI         string       `json:"uri"`
	Meta        Meta         `json:"_meta,omitempty"`
}

// EmbeddedResource is the contents of a resource, embedded into a prompt or
// tool call result.
type EmbeddedResource struct {
	Annotations *Annotations     `json:"annotations,omitempty"`
	Resource    ResourceContents `json:"resource"`
	Meta        Meta             `json:"_meta,omitempty"`
}

// ResourceContents is either text or binary resource content embedded in a
// message. The two forms are distinguished on the wire by the presence of the
// "blob" field; exactly one of Text or Blob is set.
type ResourceContents struct {
	Text *TextResourceContents
	Blob *BlobResourceContents
}

func (r ResourceContents) MarshalJSON() ([]byte, error) {
	switch {
	case r.Text != nil:
		return json.Marshal(r.Text)
	case r.Blob != nil:
		return json.Marshal(r.Blob)
	default:
		return nil, fmt.Errorf("resource contents has no variant set")
	}
}

func (r *ResourceContents) UnmarshalJSON(data []byte) error {
	var probe struct {
		Blob *string `json:"blob"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*r = ResourceContents{}
	if probe.Blob != nil {
		r.Blob = new(BlobResourceContents)
		return json.Unmarshal(data, r.Blob)
	}
	r.Text = new(TextResourceContents)
	return json.Unmarshal(data, r.Text)
}

// TextResourceContents is text-based resource content.
type TextResourceContents struct {
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
	URI      string `json:"uri"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// BlobResourceContents is binary resource content, base64-encoded.
type BlobResourceContents struct {
	Blob     string `json:"blob"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// Annotations are optional hints for the client on how objects are used or
// displayed.
type Annotations struct {
	Audience     []Role   `json:"audience,omitempty"`
	LastModified string   `json:"lastModified,omitempty"`
	Priority     *float64 `json:"priority,omitempty"`
	Meta         Meta     `json:"_meta,omitempty"`
}
