package site

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"quill/constants"
	"quill/database"
)

func tryParseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04",
		time.RFC3339,
		time.RFC3339Nano,
		time.RFC1123,
		time.RFC1123Z,
		time.RFC822,
		time.RFC822Z,
		time.RFC850,
		time.ANSIC,
		time.UnixDate,
		time.RubyDate,
		// custom formats
		"2006-01-02 15:04:05-07:00",
		"2006-01-02",
	}

	for _, layout := range formats {
		date, err := time.Parse(layout, dateStr)
		if err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// PostForm carries the submitted fields of the post create/edit page
// together with per-field validation messages, so a rejected submission
// can be re-rendered exactly as entered.
type PostForm struct {
	Title       string
	Text        string
	PubDate     string
	CategoryID  string
	LocationID  string
	IsPublished bool

	Errors map[string]string

	// select box choices for re-rendering
	Categories []database.Category
	Locations  []database.Location
}

func PostFormFromRequest(r *http.Request) *PostForm {
	return &PostForm{
		Title:       r.FormValue("title"),
		Text:        r.FormValue("text"),
		PubDate:     r.FormValue("pub_date"),
		CategoryID:  r.FormValue("category_id"),
		LocationID:  r.FormValue("location_id"),
		IsPublished: r.FormValue("is_published") == "on",
		Errors:      map[string]string{},
	}
}

// PostFormFromPost pre-fills the edit page from a stored record.
func PostFormFromPost(post *database.Post) *PostForm {
	f := &PostForm{
		Title:       post.Title,
		Text:        post.Text,
		PubDate:     post.PubDate.Format("2006-01-02T15:04"),
		IsPublished: post.IsPublished,
		Errors:      map[string]string{},
	}
	if post.CategoryID != nil {
		f.CategoryID = strconv.Itoa(int(*post.CategoryID))
	}
	if post.LocationID != nil {
		f.LocationID = strconv.Itoa(int(*post.LocationID))
	}
	return f
}

// Valid expects loadChoices to have run already: a submitted category
// or location ID must name one of the offered choices.
func (f *PostForm) Valid() bool {
	if f.Title == "" {
		f.Errors["title"] = "Title is required"
	} else if utf8.RuneCountInString(f.Title) > constants.MAX_TITLE_LENGTH {
		f.Errors["title"] = fmt.Sprintf("Title must be at most %d characters", constants.MAX_TITLE_LENGTH)
	}

	if f.Text == "" {
		f.Errors["text"] = "Text is required"
	} else if utf8.RuneCountInString(f.Text) > constants.MAX_POST_LENGTH {
		f.Errors["text"] = fmt.Sprintf("Text must be at most %d characters", constants.MAX_POST_LENGTH)
	}

	if f.PubDate != "" {
		if _, err := tryParseDate(f.PubDate); err != nil {
			f.Errors["pub_date"] = "Unrecognized date format"
		}
	}

	if f.CategoryID != "" && f.CategoryID != "0" {
		if id := parseOptionalID(f.CategoryID); id == nil || !f.offersCategory(*id) {
			f.Errors["category_id"] = "Choose a category from the list"
		}
	}

	if f.LocationID != "" && f.LocationID != "0" {
		if id := parseOptionalID(f.LocationID); id == nil || !f.offersLocation(*id) {
			f.Errors["location_id"] = "Choose a location from the list"
		}
	}

	return len(f.Errors) == 0
}

func (f *PostForm) offersCategory(id uint) bool {
	for _, c := range f.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (f *PostForm) offersLocation(id uint) bool {
	for _, l := range f.Locations {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Apply copies the validated fields onto the record. The author field
// is deliberately not part of the form; callers set it from the
// session. An empty publication date means "now".
func (f *PostForm) Apply(post *database.Post) {
	post.Title = f.Title
	post.Text = f.Text
	post.IsPublished = f.IsPublished

	if f.PubDate == "" {
		if post.PubDate.IsZero() {
			post.PubDate = time.Now()
		}
	} else if date, err := tryParseDate(f.PubDate); err == nil {
		post.PubDate = date
	}

	post.CategoryID = parseOptionalID(f.CategoryID)
	post.LocationID = parseOptionalID(f.LocationID)
}

func parseOptionalID(raw string) *uint {
	if raw == "" || raw == "0" {
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	id := uint(parsed)
	return &id
}

// loadChoices fills the category/location select boxes. Only published
// records are offered.
func (f *PostForm) loadChoices() error {
	gdb := database.GetDB()
	if err := gdb.Where("is_published = ?", true).Order("title").Find(&f.Categories).Error; err != nil {
		return err
	}
	return gdb.Where("is_published = ?", true).Order("name").Find(&f.Locations).Error
}

// CommentForm is the inline form under a post's detail page.
type CommentForm struct {
	Text   string
	Errors map[string]string
}

func CommentFormFromRequest(r *http.Request) *CommentForm {
	return &CommentForm{
		Text:   r.FormValue("text"),
		Errors: map[string]string{},
	}
}

func (f *CommentForm) Valid() bool {
	if f.Text == "" {
		f.Errors["text"] = "Comment text is required"
	} else if utf8.RuneCountInString(f.Text) > constants.MAX_COMMENT_LENGTH {
		f.Errors["text"] = fmt.Sprintf("Comments must be at most %d characters", constants.MAX_COMMENT_LENGTH)
	}
	return len(f.Errors) == 0
}

// ProfileForm edits the signed-in user's own display fields.
type ProfileForm struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Errors    map[string]string
}

func ProfileFormFromRequest(r *http.Request) *ProfileForm {
	return &ProfileForm{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Username:  r.FormValue("username"),
		Email:     r.FormValue("email"),
		Errors:    map[string]string{},
	}
}

func ProfileFormFromUser(user *database.User) *ProfileForm {
	return &ProfileForm{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		Email:     user.Email,
		Errors:    map[string]string{},
	}
}

func (f *ProfileForm) Valid() bool {
	if f.Username == "" {
		f.Errors["username"] = "Username is required"
	}
	return len(f.Errors) == 0
}
