package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/lessonworks/sage/pkg/chat"
	"github.com/lessonworks/sage/pkg/logger"
)

// Renderer turns transcript messages into styled terminal text. Parsing
// (think tags, citations) lives in pkg/chat; this package only decides how
// each segment looks.
type Renderer struct {
	userLabelStyle      lipgloss.Style
	assistantLabelStyle lipgloss.Style
	thinkingStyle       lipgloss.Style
	citationStyle       lipgloss.Style
	codeBlockStyle      lipgloss.Style
	noticeStyle         lipgloss.Style

	chromaFormatter chroma.Formatter
	showThinking    bool
	width           int
}

// New builds a renderer for the given terminal width.
func New(width int, showThinking bool) *Renderer {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	return &Renderer{
		width:           width,
		showThinking:    showThinking,
		chromaFormatter: formatter,

		userLabelStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5FD7FF")),

		assistantLabelStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98")),

		// Thinking spans stay visually secondary to the reply
		thinkingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true),

		citationStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#FFB000")).
			Padding(0, 1),

		codeBlockStyle: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1),

		noticeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347")),
	}
}

// Message renders one transcript entry, label line included.
func (r *Renderer) Message(m chat.Message) string {
	var b strings.Builder

	if m.IsUser() {
		b.WriteString(r.userLabelStyle.Render("you"))
		b.WriteString("\n")
		b.WriteString(m.Content)
		return b.String()
	}

	label := "assistant"
	if m.IsStreaming {
		label = "assistant ..."
	}
	b.WriteString(r.assistantLabelStyle.Render(label))
	b.WriteString("\n")
	b.WriteString(r.assistantBody(m))
	return b.String()
}

// Notice renders a dismissible error line.
func (r *Renderer) Notice(err error) string {
	return r.noticeStyle.Render("! " + err.Error())
}

func (r *Renderer) assistantBody(m chat.Message) string {
	res := chat.ProcessThinkTags(m.Content, m.IsStreaming)

	var b strings.Builder
	if r.showThinking && res.Open && res.Thinking != "" {
		b.WriteString(r.thinkingStyle.Render(res.Thinking))
		b.WriteString("\n")
	}

	for i, blk := range splitFenced(res.Visible) {
		if i > 0 {
			b.WriteString("\n")
		}
		if blk.code {
			b.WriteString(r.formatCodeBlock(blk.text, blk.language))
		} else {
			b.WriteString(r.renderCitations(blk.text, m.Sources))
		}
	}
	return b.String()
}

// renderCitations styles citation markers as badges and leaves the rest of
// the text as-is.
func (r *Renderer) renderCitations(text string, sources []string) string {
	var b strings.Builder
	for _, seg := range chat.ParseSourceCitations(text, sources) {
		switch seg.Kind {
		case chat.SegmentCitation:
			b.WriteString(r.citationStyle.Render(strings.Join(seg.Files, ", ")))
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// formatCodeBlock applies syntax highlighting and boxing to fenced code.
func (r *Renderer) formatCodeBlock(content, language string) string {
	if content == "" {
		return ""
	}

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	highlighted := content
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		logger.Debug("failed to tokenize code block: %v", err)
	} else {
		var buf strings.Builder
		if err := r.chromaFormatter.Format(&buf, styles.Get("monokai"), iterator); err != nil {
			logger.Debug("failed to highlight code block: %v", err)
		} else {
			highlighted = strings.TrimRight(buf.String(), "\n")
		}
	}

	boxWidth := r.width - 4
	if boxWidth < 30 {
		boxWidth = 30
	}
	return r.codeBlockStyle.Width(boxWidth).Render(highlighted)
}

type block struct {
	text     string
	language string
	code     bool
}

// splitFenced splits text on triple-backtick fences. An unterminated fence
// runs to the end of the text, which keeps streamed partial code stable.
func splitFenced(text string) []block {
	var blocks []block
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open == -1 {
			break
		}
		if open > 0 {
			blocks = append(blocks, block{text: rest[:open]})
		}
		rest = rest[open+3:]

		language := ""
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			language = strings.TrimSpace(rest[:nl])
			rest = rest[nl+1:]
		}

		closing := strings.Index(rest, "```")
		if closing == -1 {
			blocks = append(blocks, block{text: rest, language: language, code: true})
			rest = ""
			break
		}
		blocks = append(blocks, block{
			text:     strings.TrimRight(rest[:closing], "\n"),
			language: language,
			code:     true,
		})
		rest = rest[closing+3:]
		rest = strings.TrimPrefix(rest, "\n")
	}
	if rest != "" {
		blocks = append(blocks, block{text: rest})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, block{text: text})
	}
	return blocks
}
