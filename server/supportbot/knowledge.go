package supportbot

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/usememos/supportbot/plugin/vectorstore"
)

const (
	CategoryBilling         = "billing"
	CategoryTroubleshooting = "troubleshooting"
	CategoryFAQ             = "faq"
	CategoryGeneral         = "general"

	noKnowledgeFound = "No relevant information found in the knowledge base."
	chunkSeparator   = "\n\n---\n\n"
)

//go:embed knowledge/*.txt
var corpusFS embed.FS

// Searcher is the similarity-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, k int, category string) ([]vectorstore.SearchResult, error)
}

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules are checked in order; the first group with a hit wins.
var categoryRules = []categoryRule{
	{CategoryBilling, []string{"bill", "price", "cost", "subscription", "payment", "refund", "cancel", "upgrade", "downgrade", "invoice", "charge", "plan"}},
	{CategoryTroubleshooting, []string{"error", "not working", "problem", "issue", "bug", "crash", "slow", "loading", "fail", "help", "fix", "broken"}},
	{CategoryFAQ, []string{"how to", "what is", "can i", "how do", "where", "feature", "capability", "support", "does it", "is there"}},
}

// KnowledgeBase turns a query into prompt context.
type KnowledgeBase struct {
	searcher Searcher
}

func NewKnowledgeBase(searcher Searcher) *KnowledgeBase {
	return &KnowledgeBase{searcher: searcher}
}

// Search returns up to k chunks relevant to query.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	return kb.SearchByCategory(ctx, query, "", k)
}

// SearchByCategory returns up to k chunks of category relevant to query. An
// empty category searches the whole corpus.
func (kb *KnowledgeBase) SearchByCategory(ctx context.Context, query, category string, k int) ([]vectorstore.SearchResult, error) {
	results, err := kb.searcher.Search(ctx, query, k, category)
	if err != nil {
		return nil, errors.Wrap(err, "knowledge base search failed")
	}
	return results, nil
}

// Context formats the top k chunks for the system prompt.
func (kb *KnowledgeBase) Context(ctx context.Context, query string, k int) (string, error) {
	results, err := kb.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return noKnowledgeFound, nil
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Content)
	}
	return strings.Join(texts, chunkSeparator), nil
}

// Categorize labels a query by keyword groups.
func Categorize(query string) string {
	folded := fold(query)
	for _, rule := range categoryRules {
		if containsAny(folded, rule.keywords...) {
			return rule.category
		}
	}
	return CategoryGeneral
}

// Indexer stores knowledge chunks.
type Indexer interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
}

// LoadCorpus splits the bundled knowledge files and indexes them. The file
// name is the category of its chunks.
func LoadCorpus(ctx context.Context, indexer Indexer) (int, error) {
	return loadCorpus(ctx, corpusFS, "knowledge", indexer)
}

func loadCorpus(ctx context.Context, fsys fs.FS, dir string, indexer Indexer) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read knowledge corpus")
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(800),
		textsplitter.WithChunkOverlap(100),
	)
	chunks := make([][]vectorstore.Document, len(entries))
	g, _ := errgroup.WithContext(ctx)
	for i, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		g.Go(func() error {
			data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", entry.Name())
			}
			texts, err := splitter.SplitText(string(data))
			if err != nil {
				return errors.Wrapf(err, "failed to split %s", entry.Name())
			}
			category := strings.TrimSuffix(entry.Name(), ".txt")
			for j, text := range texts {
				chunks[i] = append(chunks[i], vectorstore.Document{
					ID:       fmt.Sprintf("%s-%03d", category, j),
					Content:  strings.TrimSpace(text),
					Category: category,
					Source:   entry.Name(),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var docs []vectorstore.Document
	for _, c := range chunks {
		docs = append(docs, c...)
	}
	if err := indexer.Upsert(ctx, docs); err != nil {
		return 0, errors.Wrap(err, "failed to index knowledge corpus")
	}
	slog.Info("knowledge base loaded", slog.Int("chunks", len(docs)))
	return len(docs), nil
}
