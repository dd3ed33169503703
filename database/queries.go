package database

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"quill/constants"
)

// annotates each row with the size of its comment thread
const commentCountSelect = "posts.*, " +
	"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

// PostQuery describes a single listing request: which posts, who is
// looking, and which page. A fresh value is built for every request.
type PostQuery struct {
	// CategorySlug narrows the listing to one category. Never combined
	// with an owner view, so the category join from the visible scope
	// is always present when this is set.
	CategorySlug string

	// AuthorID narrows the listing to one author (profile pages).
	AuthorID uint

	// ViewerID is the signed-in requester, zero for anonymous. When it
	// matches AuthorID the visibility predicate is skipped entirely and
	// the owner sees all of their posts.
	ViewerID uint

	// Page is 1-based; values below 1 are treated as 1.
	Page int

	// Now pins the publication cutoff; zero means time.Now().
	Now time.Time
}

// PostPage is one window of a filtered, sorted listing.
type PostPage struct {
	Posts      []Post
	Number     int
	TotalCount int64
	TotalPages int
}

func (p *PostPage) HasPrev() bool { return p.Number > 1 }
func (p *PostPage) HasNext() bool { return p.Number < p.TotalPages }

// VisibleScope narrows a posts query to what a non-author may see at
// the given instant: published, publication date reached, and category
// (when there is one) itself published. Mirrors Post.VisibleAt.
func VisibleScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.
			Joins("LEFT JOIN categories ON categories.id = posts.category_id").
			Where("posts.is_published = ?", true).
			Where("posts.pub_date <= ?", now).
			Where("posts.category_id IS NULL OR categories.is_published = ?", true)
	}
}

// FindPosts runs one listing query: visibility filter (unless the
// viewer owns the profile being listed), newest first, fixed page size,
// comment counts attached. Out-of-range pages come back empty rather
// than failing.
func FindPosts(gdb *gorm.DB, q PostQuery) (*PostPage, error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	ownerView := q.AuthorID != 0 && q.ViewerID == q.AuthorID

	base := func() *gorm.DB {
		tx := gdb.Model(&Post{})
		if !ownerView {
			tx = tx.Scopes(VisibleScope(now))
		}
		if q.CategorySlug != "" {
			tx = tx.Where("categories.slug = ?", q.CategorySlug)
		}
		if q.AuthorID != 0 {
			tx = tx.Where("posts.author_id = ?", q.AuthorID)
		}
		return tx
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	totalPages := int((total + constants.POSTS_PER_PAGE - 1) / constants.POSTS_PER_PAGE)

	var posts []Post
	err := base().
		Select(commentCountSelect).
		Order("posts.pub_date DESC, posts.id DESC").
		Limit(constants.POSTS_PER_PAGE).
		Offset((page - 1) * constants.POSTS_PER_PAGE).
		Preload("Author").
		Preload("Category").
		Preload("Location").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	return &PostPage{
		Posts:      posts,
		Number:     page,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// PostForViewer fetches one post for a detail page, with its author,
// category, location, and full comment thread loaded. A post the viewer
// may not see is reported exactly like a missing one; the author always
// gets their own post back.
func PostForViewer(gdb *gorm.DB, id uint, viewerID uint, now time.Time) (*Post, error) {
	if now.IsZero() {
		now = time.Now()
	}

	var post Post
	err := gdb.
		Preload("Author").
		Preload("Category").
		Preload("Location").
		Preload("Comments", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("comments.created_at DESC, comments.id DESC")
		}).
		Preload("Comments.Author").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}

	if post.AuthorID != viewerID && !post.VisibleAt(now) {
		return nil, gorm.ErrRecordNotFound
	}

	post.CommentCount = int64(len(post.Comments))
	return &post, nil
}

// GetPublishedCategory looks a category up by slug for the category
// listing page. Unpublished categories are reported as missing.
func GetPublishedCategory(gdb *gorm.DB, slug string) (*Category, error) {
	var category Category
	err := gdb.Where("slug = ? AND is_published = ?", slug, true).First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetUserByUsername resolves a profile URL segment to its user record.
func GetUserByUsername(gdb *gorm.DB, username string) (*User, error) {
	var user User
	err := gdb.Where(&User{Username: username}).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeletePost removes a post together with its comment thread. The
// thread is cleared explicitly as well so the invariant holds even on
// stores without the cascade constraint applied.
func DeletePost(gdb *gorm.DB, post *Post) error {
	if err := gdb.Where("post_id = ?", post.ID).Delete(&Comment{}).Error; err != nil {
		return err
	}
	return gdb.Delete(post).Error
}

// DeleteCategory removes a category; posts keep existing with the
// reference nulled out.
func DeleteCategory(gdb *gorm.DB, category *Category) error {
	err := gdb.Model(&Post{}).Where("category_id = ?", category.ID).
		Update("category_id", nil).Error
	if err != nil {
		return err
	}
	return gdb.Delete(category).Error
}

// DeleteLocation removes a location; posts keep existing with the
// reference nulled out.
func DeleteLocation(gdb *gorm.DB, location *Location) error {
	err := gdb.Model(&Post{}).Where("location_id = ?", location.ID).
		Update("location_id", nil).Error
	if err != nil {
		return err
	}
	return gdb.Delete(location).Error
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
