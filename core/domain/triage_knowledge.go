package domain

// KnowledgeDocument is an immutable reference entry in the knowledge base.
type KnowledgeDocument struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}
