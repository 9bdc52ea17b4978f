package model

import (
	"time"
)

// Column limits for the user supplied article fields.
const (
	AuthorMaxLen  = 100
	ContentMaxLen = 4000
)

// Article data model. ID is assigned by the store on creation and never
// reused; Created is set once, Updated on every successful mutation.
type Article struct {
	ID      int64
	Author  string
	Content string
	Created time.Time
	Updated time.Time
}

// OptionalString tells "field not supplied" apart from "field supplied as
// an empty string".
type OptionalString struct {
	Value string
	Set   bool
}

func Some(v string) OptionalString {
	return OptionalString{Value: v, Set: true}
}

func None() OptionalString {
	return OptionalString{}
}

// Ptr returns nil for an absent value. Used as a nullable query argument.
func (o OptionalString) Ptr() *string {
	if !o.Set {
		return nil
	}

	v := o.Value

	return &v
}

// ArticlePatch is a validated set of changes to an Article.
type ArticlePatch struct {
	Author  OptionalString
	Content OptionalString
}

// Apply overwrites every supplied field and refreshes Updated, even when
// the patch carries no fields at all. Updated never moves before Created.
func (p ArticlePatch) Apply(a *Article, now time.Time) {
	if now.Before(a.Created) {
		now = a.Created
	}

	if p.Author.Set {
		a.Author = p.Author.Value
	}

	if p.Content.Set {
		a.Content = p.Content.Value
	}

	a.Updated = now
}
