// Package rag provides retrieval over the support knowledge base.
package rag

import (
	"fmt"
	"os"

	"triage_server/core/domain"

	"gopkg.in/yaml.v3"
)

// DefaultCorpus returns the built-in knowledge base.
func DefaultCorpus() []domain.KnowledgeDocument {
	return []domain.KnowledgeDocument{
		{ID: "faq_01", Title: "Refund Policy", Content: "We offer full refunds within 30 days of purchase. To request a refund, contact support with your order ID."},
		{ID: "faq_02", Title: "Shipping Information", Content: "Standard shipping takes 3-5 business days. Express shipping is available for 1-2 day delivery."},
		{ID: "faq_03", Title: "Account Issues", Content: "If you're having trouble accessing your account, try resetting your password or contact support."},
		{ID: "policy_01", Title: "Privacy Policy", Content: "We protect your personal information and only use it to provide our services. We never share data with third parties."},
		{ID: "policy_02", Title: "Terms of Service", Content: "By using our service, you agree to our terms. Violations may result in account suspension."},
		{ID: "billing_01", Title: "Billing Support", Content: "For billing questions, contact our billing team with your order ID and payment method details."},
		{ID: "tech_01", Title: "Technical Support", Content: "For technical issues, please provide your device information, browser version, and steps to reproduce the issue."},
		{ID: "feature_01", Title: "Feature Requests", Content: "We welcome feature suggestions! Please describe your use case and how it would benefit other users."},
	}
}

type corpusFile struct {
	Documents []domain.KnowledgeDocument `yaml:"documents"`
}

// LoadCorpus reads a YAML corpus of the form:
//
//	documents:
//	  - id: faq_01
//	    title: Refund Policy
//	    content: ...
//
// An empty path yields DefaultCorpus.
func LoadCorpus(path string) ([]domain.KnowledgeDocument, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

func ParseCorpus(data []byte) ([]domain.KnowledgeDocument, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Documents))
	for i, d := range f.Documents {
		if d.ID == "" {
			return nil, fmt.Errorf("parse corpus: document %d has no id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("parse corpus: duplicate id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return f.Documents, nil
}
