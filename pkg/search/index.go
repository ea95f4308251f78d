package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Index wraps a Bleve index of posts. Only the fields needed to filter and
// rank are stored; hits are hydrated from the record store.
type Index struct {
	index bleve.Index
}

type document struct {
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Kind       string    `json:"kind"`
	Visibility string    `json:"visibility"`
	AuthorID   int64     `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Query is a relevance search over public posts.
type Query struct {
	Text     string
	Kind     models.PostKind
	Tags     []string
	AuthorID int64
	Skip     int
	Limit    int
}

type Result struct {
	IDs   []int64
	Total int
}

// Open opens or creates an on-disk index at path. An empty path builds an
// in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", content)
	docMapping.AddFieldMappingsAt("tags", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("kind", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("visibility", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("author_id", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("created_at", bleve.NewDateTimeFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (i *Index) Close() error {
	return i.index.Close()
}

func toDocument(p models.Post) document {
	return document{
		Content:    p.Content,
		Tags:       p.Tags,
		Kind:       string(p.Kind),
		Visibility: string(p.Visibility),
		AuthorID:   p.AuthorID,
		CreatedAt:  p.CreatedAt,
	}
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Put adds or replaces a post. Inactive posts are removed instead.
func (i *Index) Put(p models.Post) error {
	if !p.Active {
		return i.Delete(p.ID)
	}
	return i.index.Index(docID(p.ID), toDocument(p))
}

func (i *Index) Delete(id int64) error {
	return i.index.Delete(docID(id))
}

func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func (i *Index) Search(ctx context.Context, q Query) (Result, error) {
	text := strings.TrimSpace(q.Text)

	content := bleve.NewMatchQuery(text)
	content.SetField("content")
	tag := bleve.NewMatchQuery(strings.ToLower(text))
	tag.SetField("tags")
	tag.SetBoost(2)

	public := bleve.NewTermQuery(string(models.VisibilityPublic))
	public.SetField("visibility")

	must := []query.Query{bleve.NewDisjunctionQuery(content, tag), public}

	if q.Kind != "" {
		kind := bleve.NewTermQuery(string(q.Kind))
		kind.SetField("kind")
		must = append(must, kind)
	}
	if len(q.Tags) > 0 {
		var anyTag []query.Query
		for _, t := range q.Tags {
			tq := bleve.NewTermQuery(t)
			tq.SetField("tags")
			anyTag = append(anyTag, tq)
		}
		must = append(must, bleve.NewDisjunctionQuery(anyTag...))
	}
	if q.AuthorID > 0 {
		id := float64(q.AuthorID)
		inclusive := true
		author := bleve.NewNumericRangeInclusiveQuery(&id, &id, &inclusive, &inclusive)
		author.SetField("author_id")
		must = append(must, author)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), q.Limit, q.Skip, false)
	req.SortBy([]string{"-_score", "-created_at"})

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	out := Result{IDs: make([]int64, 0, len(res.Hits)), Total: int(res.Total)}
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out.IDs = append(out.IDs, id)
	}
	return out, nil
}

const rebuildBatch = 500

// Rebuild indexes every active post in the store, newest first.
func (i *Index) Rebuild(ctx context.Context, posts repository.PostRepository) (int, error) {
	indexed := 0
	for skip := 0; ; skip += rebuildBatch {
		page, err := posts.Find(ctx, repository.PostQuery{Sort: repository.SortRecent, Skip: skip, Limit: rebuildBatch})
		if err != nil {
			return indexed, fmt.Errorf("list posts: %w", err)
		}

		batch := i.index.NewBatch()
		for _, p := range page {
			if err := batch.Index(docID(p.ID), toDocument(p)); err != nil {
				return indexed, fmt.Errorf("batch index %d: %w", p.ID, err)
			}
		}
		if err := i.index.Batch(batch); err != nil {
			return indexed, fmt.Errorf("commit batch: %w", err)
		}

		indexed += len(page)
		if len(page) < rebuildBatch {
			return indexed, nil
		}
	}
}
