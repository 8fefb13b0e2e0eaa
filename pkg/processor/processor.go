package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xhad/bizintel/internal/models"
)

type ProcessorConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MinChunkLength  int
	Lowercase       bool
	RemoveStopwords bool
	CustomStopwords []string
}

// Processor turns extracted markdown pages into overlapping text chunks for indexing.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{
		config: config,
	}
}

// DocumentsFromPages builds one document per successful page, ordered by URL.
func DocumentsFromPages(requestID string, pages models.ExtractionResult) []models.Document {
	urls := make([]string, 0, len(pages))
	for u, page := range pages {
		if page.OK && strings.TrimSpace(page.Content) != "" {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	docs := make([]models.Document, 0, len(urls))
	for _, u := range urls {
		docs = append(docs, models.Document{
			ID:      requestID + "_" + URLHash(u),
			URL:     u,
			Title:   markdownTitle(pages[u].Content),
			Content: pages[u].Content,
			Metadata: map[string]interface{}{
				"request_id": requestID,
			},
		})
	}
	return docs
}

// URLHash is a short stable identifier for a page URL.
func URLHash(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		cleanContent := p.cleanText(doc.Content)
		chunks := p.splitIntoChunks(cleanContent)
		if len(chunks) == 0 {
			continue
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markdownMarks = regexp.MustCompile("(?m)^\\s*(#{1,6}|[-*+>]|\\d+\\.)\\s+|[*_`]{1,3}")
)

func (p *Processor) cleanText(text string) string {
	text = markdownImage.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = markdownMarks.ReplaceAllString(text, "")

	if p.config.Lowercase {
		text = strings.ToLower(text)
	}

	// Replace multiple spaces with single space
	text = strings.Join(strings.Fields(text), " ")

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := p.splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		if currentChunk.Len() > 0 && currentChunk.Len()+len(sentence) > p.config.ChunkSize {
			if currentChunk.Len() >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Start new chunk with overlap
			if p.config.ChunkOverlap > 0 && currentChunk.Len() > p.config.ChunkOverlap {
				text := currentChunk.String()
				start := len(text) - p.config.ChunkOverlap
				for start < len(text) && !utf8.RuneStart(text[start]) {
					start++
				}
				currentChunk.Reset()
				currentChunk.WriteString(text[start:])
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	if currentChunk.Len() >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func (p *Processor) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

func (p *Processor) removeStopwords(text string) string {
	stopwords := map[string]bool{}
	for _, w := range defaultStopwords {
		stopwords[w] = true
	}
	for _, w := range p.config.CustomStopwords {
		stopwords[strings.ToLower(w)] = true
	}

	var filtered []string
	for _, word := range strings.Fields(text) {
		if !stopwords[strings.ToLower(word)] {
			filtered = append(filtered, word)
		}
	}

	return strings.Join(filtered, " ")
}

// Common English stopwords
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for",
	"from", "has", "he", "in", "is", "it", "its", "of", "on",
	"that", "the", "to", "was", "were", "will", "with",
}
