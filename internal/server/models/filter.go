package models

import (
	"encoding/json"
	"time"
)

// Criterion is one dimension of an article filter. The set of criteria is
// closed: TitleContains, ByAuthor and PublishedBetween.
type Criterion interface {
	addTo(f *ArticleFilter)
}

// TitleContains matches articles whose title contains the substring,
// case-insensitively.
type TitleContains string

// ByAuthor matches articles written by the user with this id.
type ByAuthor string

// PublishedBetween matches articles published inside [Start, End]. Either
// bound may be nil for an open range.
type PublishedBetween struct {
	Start *time.Time
	End   *time.Time
}

func (c TitleContains) addTo(f *ArticleFilter) {
	if c == "" {
		f.title = nil
		return
	}
	f.title = &c
}

func (c ByAuthor) addTo(f *ArticleFilter) {
	if c == "" {
		f.author = nil
		return
	}
	f.author = &c
}

func (c PublishedBetween) addTo(f *ArticleFilter) {
	if c.Start == nil && c.End == nil {
		f.published = nil
		return
	}
	f.published = &c
}

// Valid reports whether the range is non-empty.
func (c PublishedBetween) Valid() bool {
	return c.Start == nil || c.End == nil || !c.Start.After(*c.End)
}

// ArticleFilter is a set of criteria holding at most one per dimension.
// Adding a criterion for a dimension that is already present replaces it.
// Empty criteria (blank title, blank author, unbounded range) are dropped.
// The zero value matches everything.
type ArticleFilter struct {
	title     *TitleContains
	author    *ByAuthor
	published *PublishedBetween
}

// NewArticleFilter builds a filter from the given criteria.
func NewArticleFilter(criteria ...Criterion) ArticleFilter {
	var f ArticleFilter
	for _, c := range criteria {
		if c != nil {
			c.addTo(&f)
		}
	}
	return f
}

// With returns a copy of f with c added.
func (f ArticleFilter) With(c Criterion) ArticleFilter {
	if c != nil {
		c.addTo(&f)
	}
	return f
}

// Title returns the title criterion, if any.
func (f ArticleFilter) Title() (TitleContains, bool) {
	if f.title == nil {
		return "", false
	}
	return *f.title, true
}

// Author returns the author criterion, if any.
func (f ArticleFilter) Author() (ByAuthor, bool) {
	if f.author == nil {
		return "", false
	}
	return *f.author, true
}

// Published returns the publication range criterion, if any.
func (f ArticleFilter) Published() (PublishedBetween, bool) {
	if f.published == nil {
		return PublishedBetween{}, false
	}
	return *f.published, true
}

// Criteria lists the present criteria in canonical order:
// title, author, publication range.
func (f ArticleFilter) Criteria() []Criterion {
	var out []Criterion
	if f.title != nil {
		out = append(out, *f.title)
	}
	if f.author != nil {
		out = append(out, *f.author)
	}
	if f.published != nil {
		out = append(out, *f.published)
	}
	return out
}

// canonicalFilter fixes the field order of the serialized form.
type canonicalFilter struct {
	Title     *string `json:"title,omitempty"`
	AuthorID  *string `json:"authorId,omitempty"`
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

// Canonical returns a stable serialization of f: fixed field order, absent
// dimensions omitted, times in UTC RFC 3339 with nanoseconds. Two filters are
// semantically equal iff their canonical forms are equal.
func (f ArticleFilter) Canonical() string {
	var c canonicalFilter
	if f.title != nil {
		s := string(*f.title)
		c.Title = &s
	}
	if f.author != nil {
		s := string(*f.author)
		c.AuthorID = &s
	}
	if f.published != nil {
		c.StartDate = formatBound(f.published.Start)
		c.EndDate = formatBound(f.published.End)
	}

	b, err := json.Marshal(c)
	if err != nil {
		// only strings go in, Marshal cannot fail
		panic(err)
	}
	return string(b)
}

func formatBound(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
