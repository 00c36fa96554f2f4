package bibtex

// Comment is an opaque @comment{...} block. Its content is preserved but
// never interpreted or expanded.
type Comment struct {
	element
	content string
}

// NewComment creates a comment holding text verbatim.
func NewComment(text string) *Comment {
	return &Comment{content: text}
}

// Kind returns KindComment.
func (c *Comment) Kind() Kind {
	return KindComment
}

// Type returns "comment".
func (c *Comment) Type() string {
	return TypeComment
}

// HasType reports whether candidate names this variant.
func (c *Comment) HasType(candidate string) bool {
	return matchType(KindComment, TypeComment, candidate)
}

// Content returns the stored text verbatim.
func (c *Comment) Content() string {
	return c.content
}

// SetContent replaces the stored text.
func (c *Comment) SetContent(text string) {
	c.content = text
}

// Text returns `@comment{ text }`.
func (c *Comment) Text() string {
	return "@comment{ " + c.content + " }"
}

// Structured returns the generic {type: content} shape.
func (c *Comment) Structured() map[string]any {
	return map[string]any{TypeComment: c.content}
}

// Field exposes "content".
func (c *Comment) Field(name string) (string, bool) {
	if name == "content" {
		return c.content, true
	}
	return "", false
}

// MetaContent is stray text found outside any recognized block. The
// parser skips it by default and surfaces it as a first-class element
// only when the caller opts in.
type MetaContent struct {
	element
	content string
}

// NewMetaContent creates a meta content element holding text verbatim.
func NewMetaContent(text string) *MetaContent {
	return &MetaContent{content: text}
}

// Kind returns KindMetaContent.
func (m *MetaContent) Kind() Kind {
	return KindMetaContent
}

// Type returns "meta_content".
func (m *MetaContent) Type() string {
	return TypeMetaContent
}

// HasType reports whether candidate names this variant ("meta" and
// "meta_content" both do).
func (m *MetaContent) HasType(candidate string) bool {
	return matchType(KindMetaContent, TypeMetaContent, candidate)
}

// Content returns the stored text verbatim.
func (m *MetaContent) Content() string {
	return m.content
}

// SetContent replaces the stored text.
func (m *MetaContent) SetContent(text string) {
	m.content = text
}

// Text returns the content unchanged; meta content has no block syntax.
func (m *MetaContent) Text() string {
	return m.content
}

// Structured returns the generic {type: content} shape.
func (m *MetaContent) Structured() map[string]any {
	return map[string]any{TypeMetaContent: m.content}
}

// Field exposes "content".
func (m *MetaContent) Field(name string) (string, bool) {
	if name == "content" {
		return m.content, true
	}
	return "", false
}
