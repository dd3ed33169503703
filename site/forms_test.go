package site

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/constants"
	"quill/database"
)

func TestTryParseDate(t *testing.T) {
	parsed, err := tryParseDate("2026-03-01T09:30")
	require.NoError(t, err)
	assert.Equal(t, time.March, parsed.Month())

	parsed, err = tryParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Day())

	_, err = tryParseDate("next tuesday")
	assert.Error(t, err)
}

func TestPostFormValidation(t *testing.T) {
	form := &PostForm{Errors: map[string]string{}}
	assert.False(t, form.Valid())
	assert.Contains(t, form.Errors, "title")
	assert.Contains(t, form.Errors, "text")

	form = &PostForm{
		Title:   strings.Repeat("x", constants.MAX_TITLE_LENGTH+1),
		Text:    "fine",
		Errors:  map[string]string{},
		PubDate: "not a date",
	}
	assert.False(t, form.Valid())
	assert.Contains(t, form.Errors, "title")
	assert.Contains(t, form.Errors, "pub_date")

	// the title limit counts characters, not bytes
	form = &PostForm{
		Title:  strings.Repeat("ж", constants.MAX_TITLE_LENGTH),
		Text:   "fine",
		Errors: map[string]string{},
	}
	assert.True(t, form.Valid())

	form = &PostForm{Title: "ok", Text: "ok", Errors: map[string]string{}}
	assert.True(t, form.Valid())
}

func TestPostFormRejectsUnofferedChoices(t *testing.T) {
	form := &PostForm{
		Title:      "ok",
		Text:       "ok",
		CategoryID: "999",
		Errors:     map[string]string{},
		Categories: []database.Category{{ID: 3, Title: "travel"}},
	}
	assert.False(t, form.Valid())
	assert.Contains(t, form.Errors, "category_id")

	form = &PostForm{
		Title:      "ok",
		Text:       "ok",
		CategoryID: "3",
		LocationID: "nonsense",
		Errors:     map[string]string{},
		Categories: []database.Category{{ID: 3, Title: "travel"}},
		Locations:  []database.Location{{ID: 7, Name: "Oslo"}},
	}
	assert.False(t, form.Valid())
	assert.Contains(t, form.Errors, "location_id")
	assert.NotContains(t, form.Errors, "category_id")
}

func TestPostFormApply(t *testing.T) {
	form := &PostForm{
		Title:       "hello",
		Text:        "world",
		PubDate:     "2026-05-04T10:00",
		CategoryID:  "3",
		IsPublished: true,
		Errors:      map[string]string{},
	}

	var post database.Post
	form.Apply(&post)

	assert.Equal(t, "hello", post.Title)
	assert.Equal(t, 2026, post.PubDate.Year())
	require.NotNil(t, post.CategoryID)
	assert.Equal(t, uint(3), *post.CategoryID)
	assert.Nil(t, post.LocationID)
	assert.True(t, post.IsPublished)

	// an empty date means "now" on a fresh post
	blank := &PostForm{Title: "t", Text: "x", Errors: map[string]string{}}
	var fresh database.Post
	blank.Apply(&fresh)
	assert.WithinDuration(t, time.Now(), fresh.PubDate, time.Minute)

	// and leaves an existing date alone on edit
	existing := database.Post{PubDate: post.PubDate}
	blank.Apply(&existing)
	assert.Equal(t, post.PubDate, existing.PubDate)
}

func TestCommentFormValidation(t *testing.T) {
	form := &CommentForm{Errors: map[string]string{}}
	assert.False(t, form.Valid())

	form = &CommentForm{Text: strings.Repeat("y", constants.MAX_COMMENT_LENGTH+1), Errors: map[string]string{}}
	assert.False(t, form.Valid())

	form = &CommentForm{Text: "sounds good", Errors: map[string]string{}}
	assert.True(t, form.Valid())
}
