package database

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Username     string `gorm:"uniqueIndex;size:150" json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"-"`
	PasswordHash string `json:"-"`
	SessionToken string `gorm:"index;unique" json:"-"`
	IsStaff      bool   `json:"-"`

	Posts    []Post    `gorm:"foreignKey:AuthorID" json:"-"`
	Comments []Comment `gorm:"foreignKey:AuthorID" json:"-"`
}

type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Title       string `gorm:"size:256" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Slug        string `gorm:"uniqueIndex;size:256" json:"slug"`
	IsPublished bool   `gorm:"default:true" json:"is_published"`

	Posts []Post `gorm:"foreignKey:CategoryID" json:"-"`
}

type Location struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Name        string `gorm:"size:256" json:"name"`
	IsPublished bool   `gorm:"default:true" json:"is_published"`

	Posts []Post `gorm:"foreignKey:LocationID" json:"-"`
}

type Post struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Title       string    `gorm:"size:256" json:"title"`
	Text        string    `gorm:"type:text" json:"text"`
	PubDate     time.Time `gorm:"index" json:"pub_date"`
	Image       string    `json:"image,omitempty"`
	IsPublished bool      `gorm:"default:true" json:"is_published"`

	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	Author     User      `gorm:"constraint:OnDelete:CASCADE" json:"author"`
	CategoryID *uint     `json:"category_id,omitempty"`
	Category   *Category `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	LocationID *uint     `json:"location_id,omitempty"`
	Location   *Location `gorm:"constraint:OnDelete:SET NULL" json:"location,omitempty"`

	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`

	// filled by listing queries, never stored
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
}

type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Text     string `gorm:"type:text" json:"text"`
	PostID   uint   `gorm:"index;not null" json:"post_id"`
	AuthorID uint   `gorm:"index;not null" json:"author_id"`
	Author   User   `gorm:"constraint:OnDelete:CASCADE" json:"author"`
}

// VisibleAt reports whether the post may be shown to anyone other than
// its author at the given instant. The Category association must be
// loaded for posts that reference one.
func (p *Post) VisibleAt(now time.Time) bool {
	if !p.IsPublished || p.PubDate.After(now) {
		return false
	}
	if p.Category != nil && !p.Category.IsPublished {
		return false
	}
	return true
}
