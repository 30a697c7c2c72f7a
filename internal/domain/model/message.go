package model

// Block types understood by chat webhooks.
const (
	BlockHeader  = "header"
	BlockSection = "section"
	BlockDivider = "divider"
	BlockContext = "context"
)

// Text object types.
const (
	TextPlain    = "plain_text"
	TextMarkdown = "mrkdwn"
)

// TextObject is a piece of block text.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Block is one layout block of a rendered message.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Elements []TextObject `json:"elements,omitempty"`
}

// RenderedMessage is a chat message ready for delivery. Text is the plain
// fallback shown in notifications.
type RenderedMessage struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// Markdown returns the mrkdwn text of every block in order, with dividers
// rendered as horizontal rules.
func (m RenderedMessage) Markdown() []string {
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockDivider:
			parts = append(parts, "---")
		case BlockContext:
			for _, e := range b.Elements {
				parts = append(parts, e.Text)
			}
		default:
			if b.Text != nil {
				parts = append(parts, b.Text.Text)
			}
		}
	}
	return parts
}
